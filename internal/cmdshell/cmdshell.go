// Package cmdshell builds the shell command strings the router hands the
// agent framework (exec wrapper) and the container-side commands the
// post-execution hook runs (read, list, grep, glob). Every builder here is
// a pure function of its inputs.
package cmdshell

import (
	"fmt"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// DefaultListLimit and DefaultGlobLimit match the teacher's head -n
// defaults for the list and glob container-side commands.
const (
	DefaultListLimit = 200
	DefaultGlobLimit = 100
)

// ExecWrapper builds the shell string that runs command inside container
// via the OCI runtime binary: "BINARY exec -i [--workdir W] [-e K=V]...
// CONTAINER sh -lc CMD". If binary, container, or command is empty, it
// returns a failure command that prints a diagnostic and exits nonzero,
// so the caller can still hand the agent a visible error.
func ExecWrapper(binary, container, command, workdir string, env map[string]string) string {
	if binary == "" || container == "" || command == "" {
		return failureCommand(binary, container, command)
	}

	var b strings.Builder
	b.WriteString(binary)
	b.WriteString(" exec -i")
	if workdir != "" {
		b.WriteString(" --workdir ")
		b.WriteString(shellescape.Quote(workdir))
	}
	for _, k := range sortedKeys(env) {
		b.WriteString(" -e ")
		b.WriteString(shellescape.Quote(fmt.Sprintf("%s=%s", k, env[k])))
	}
	b.WriteByte(' ')
	b.WriteString(shellescape.Quote(container))
	b.WriteString(" sh -lc ")
	b.WriteString(QuoteDouble(command))
	return b.String()
}

func failureCommand(binary, container, command string) string {
	missing := []string{}
	if binary == "" {
		missing = append(missing, "runtime binary")
	}
	if container == "" {
		missing = append(missing, "container name")
	}
	if command == "" {
		missing = append(missing, "command")
	}
	msg := fmt.Sprintf("shipyard: cannot route tool call, missing %s", strings.Join(missing, ", "))
	return Failure(msg)
}

// Failure builds a shell command that prints msg to stderr and exits
// nonzero, so a caller that cannot route a shell call can still hand the
// agent a visible, explicit error instead of silently doing nothing.
func Failure(msg string) string {
	return fmt.Sprintf("echo %s >&2; exit 1", shellescape.Quote(msg))
}

// Read builds the container-side read command: cat -- "PATH".
func Read(path string) string {
	return fmt.Sprintf("cat -- %s", QuoteDouble(path))
}

// List builds the container-side directory listing command.
func List(path string, limit int) string {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return fmt.Sprintf("ls -A -p -1 -- %s 2>/dev/null | head -n %d", QuoteDouble(path), limit)
}

// Grep builds the container-side ripgrep search command. The
// --field-match-separator is a single pipe; the post-hook depends on this
// exact separator to split filePath|lineNumber|rest.
func Grep(pattern, include string) string {
	cmd := fmt.Sprintf(`rg -nH "--field-match-separator=|" --regexp %s`, QuoteDouble(pattern))
	if include != "" {
		cmd += fmt.Sprintf(" --glob %s", QuoteDouble(include))
	}
	cmd += " 2>/dev/null"
	return cmd
}

// Glob builds the container-side ripgrep file-listing command.
func Glob(pattern string, limit int) string {
	if limit <= 0 {
		limit = DefaultGlobLimit
	}
	cmd := "rg --files"
	if pattern != "" {
		cmd += fmt.Sprintf(" -g %s", QuoteDouble(pattern))
	}
	cmd += fmt.Sprintf(" 2>/dev/null | head -n %d", limit)
	return cmd
}

// QuoteDouble wraps s in double quotes, escaping $, `, ", and \ — the only
// characters with escape meaning inside a POSIX double-quoted string. A
// literal newline needs no escaping: it is preserved verbatim between the
// quotes. This is distinct from shellescape.Quote, which produces
// single-quoted output and cannot be embedded inside the wrapper's
// double-quoted payload. Exported so every double-quoted container-side
// command, including the post-hook's mkdir target, shares one escaping
// contract instead of each building its own.
func QuoteDouble(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '$', '`', '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
