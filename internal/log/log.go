package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// logger and baseHandler are guarded by mu: the router dispatches
// pre-hooks and post-hooks for many tool calls concurrently, unlike a
// single agent run per process, so SetCallID/ClearCallID can race with
// each other and with the Debug/Info/Warn/Error accessors.
var (
	mu          sync.Mutex
	logger      *slog.Logger
	baseHandler slog.Handler
	fileWriter  *FileWriter
)

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Options configures the logger.
type Options struct {
	// Verbose enables debug/info output to stderr (non-interactive only)
	Verbose bool
	// JSONFormat uses JSON output format for stderr
	JSONFormat bool
	// Interactive mode suppresses debug/info to stderr regardless of Verbose
	Interactive bool
	// DebugDir is the directory for debug log files. If empty, file logging is disabled.
	DebugDir string
	// RetentionDays is how many days to keep log files (0 = no cleanup)
	RetentionDays int
	// Stderr is the writer for stderr output (defaults to os.Stderr)
	Stderr io.Writer
}

// Init initializes the global logger with the given options.
func Init(opts Options) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var handlers []slog.Handler

	// Stderr handler: Warn+Error by default, all levels if verbose && !interactive
	stderrLevel := slog.LevelWarn
	if opts.Verbose && !opts.Interactive {
		stderrLevel = slog.LevelDebug
	}

	stderrOpts := &slog.HandlerOptions{
		Level: stderrLevel,
	}

	if opts.JSONFormat {
		handlers = append(handlers, slog.NewJSONHandler(stderr, stderrOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stderr, stderrOpts))
	}

	// File handler: always all levels, always JSON
	if opts.DebugDir != "" {
		fw, err := NewFileWriter(opts.DebugDir, opts.RetentionDays)
		if err != nil {
			return err
		}
		fileWriter = fw

		fileOpts := &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}
		handlers = append(handlers, slog.NewJSONHandler(fileWriter, fileOpts))
	}

	mu.Lock()
	baseHandler = &multiHandler{handlers: handlers}
	logger = slog.New(baseHandler)
	mu.Unlock()
	slog.SetDefault(logger)
	return nil
}

// Close closes the file writer if one was created.
func Close() {
	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
}

// multiHandler fans out log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// With returns a logger with additional context.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// SetOutput sets the output writer (for testing).
func SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	mu.Lock()
	baseHandler = handler
	logger = slog.New(handler)
	mu.Unlock()
	slog.SetDefault(logger)
}

// SetCallID adds a call_id attribute to all subsequent log messages, so
// the pre-hook that staged a container call and the post-hook that later
// consumes it log under the same correlation id. The router dispatches
// calls for many concurrent tool invocations, so this only correlates
// the most recently tagged call; overlapping calls sharing a process can
// still interleave under the wrong call_id, same as the single-run
// attribution this was adapted from.
func SetCallID(callID string) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(baseHandler.WithAttrs([]slog.Attr{
		slog.String("call_id", callID),
	}))
	slog.SetDefault(logger)
}

// ClearCallID removes the call_id attribute by rebuilding the logger from
// baseHandler, rather than overwriting it with an empty string, so a call
// without a call_id never logs a stray "call_id":"" field.
func ClearCallID() {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(baseHandler)
	slog.SetDefault(logger)
}

func init() {
	// Default logger until Init is called
	baseHandler = slog.Default().Handler()
	logger = slog.Default()
}
