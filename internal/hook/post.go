package hook

import (
	"context"
	"strings"

	"github.com/portmantle/shipyard/internal/cmdshell"
	"github.com/portmantle/shipyard/internal/dockerrt"
	"github.com/portmantle/shipyard/internal/log"
	"github.com/portmantle/shipyard/internal/pathmap"
)

// maxGlobResults caps how many glob matches the post-hook rewrites into
// the agent's output, mirroring the head -n limit baked into the
// container-side command itself.
const maxGlobResults = 100

// Output is the mutable result record the post-hook overwrites in place.
type Output struct {
	Output   string
	Title    string
	Metadata map[string]any
}

// PostHook consumes the PendingCall staged by the pre-hook for a given
// callId and runs the matching container-side command, overwriting the
// agent's tool output with the result.
type PostHook struct {
	runtime dockerrt.Runtime
	pending *PendingCalls
}

// NewPostHook builds a PostHook driving runtime and consuming pending.
func NewPostHook(runtime dockerrt.Runtime, pending *PendingCalls) *PostHook {
	return &PostHook{runtime: runtime, pending: pending}
}

// Handle looks up the PendingCall staged for callID and, if found, runs the
// corresponding container-side command and rewrites output in place.
func (h *PostHook) Handle(ctx context.Context, toolName, callID string, output *Output) {
	call, ok := h.pending.Take(callID)
	if !ok {
		return
	}
	defer log.ClearCallID()

	switch call.Kind {
	case "read":
		h.handleRead(ctx, call, output)
	case "list":
		h.handleList(ctx, call, output)
	case "grep":
		h.handleGrep(ctx, call, output)
	case "glob":
		h.handleGlob(ctx, call, output)
	case "write", "edit":
		h.handleWriteOrEdit(ctx, call)
	}
}

func (h *PostHook) handleRead(ctx context.Context, call PendingCall, output *Output) {
	res, err := h.runtime.Exec(ctx, call.ContainerName, cmdshell.Read(call.ContainerPath), "")
	if err != nil {
		log.Warn("reading file in container, leaving host result unchanged", "container", call.ContainerName, "path", call.ContainerPath, "error", err)
		return
	}
	output.Output = res.Stdout
}

func (h *PostHook) handleList(ctx context.Context, call PendingCall, output *Output) {
	res, err := h.runtime.Exec(ctx, call.ContainerName, cmdshell.List(call.ContainerPath, 0), "")
	if err != nil {
		log.Warn("listing directory in container, leaving host result unchanged", "container", call.ContainerName, "path", call.ContainerPath, "error", err)
		return
	}
	output.Output = res.Stdout
}

func (h *PostHook) handleGrep(ctx context.Context, call PendingCall, output *Output) {
	res, err := h.runtime.Exec(ctx, call.ContainerName, cmdshell.Grep(call.Pattern, call.Include), call.ContainerRoot)
	if err != nil {
		log.Warn("grepping in container, leaving host result unchanged", "container", call.ContainerName, "error", err)
		return
	}
	if res.ExitCode != 0 && res.ExitCode != 1 {
		log.Warn("grep exited with an unexpected status, leaving host result unchanged", "container", call.ContainerName, "exitCode", res.ExitCode)
		return
	}
	output.Output = remapGrepOutput(res.Stdout, call.HostRoot, call.ContainerRoot)
}

func (h *PostHook) handleGlob(ctx context.Context, call PendingCall, output *Output) {
	res, err := h.runtime.Exec(ctx, call.ContainerName, cmdshell.Glob(call.Pattern, 0), call.ContainerRoot)
	if err != nil {
		log.Warn("globbing in container, leaving host result unchanged", "container", call.ContainerName, "error", err)
		return
	}
	output.Output = remapGlobOutput(res.Stdout, call.HostRoot, call.ContainerRoot)
}

func (h *PostHook) handleWriteOrEdit(ctx context.Context, call PendingCall) {
	mkdirCmd := "mkdir -p -- " + quoteContainerDir(call.ContainerPath)
	res, err := h.runtime.Exec(ctx, call.ContainerName, mkdirCmd, "")
	if err != nil || res.ExitCode != 0 {
		log.Warn("creating container directory for write sync, leaving container unchanged", "container", call.ContainerName, "path", call.ContainerPath, "error", err)
		return
	}

	if err := h.runtime.CopyToContainer(ctx, call.ContainerName, call.HostPath, call.ContainerPath); err != nil {
		log.Warn("syncing written file into container, leaving container unchanged", "container", call.ContainerName, "hostPath", call.HostPath, "containerPath", call.ContainerPath, "error", err)
	}
}

// remapGrepOutput rewrites each ripgrep result line's leading filePath
// field from container-relative to host-absolute, per spec.md §4.8. The
// separator is a single pipe, requested via ripgrep's
// --field-match-separator flag; a literal pipe inside a matched file path
// is not handled and will mis-split this line. Callers accept that risk.
func remapGrepOutput(stdout, hostRoot, containerRoot string) string {
	lines := strings.Split(stdout, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		first := strings.IndexByte(line, '|')
		if first < 0 {
			out = append(out, line)
			continue
		}
		second := strings.IndexByte(line[first+1:], '|')
		if second < 0 {
			out = append(out, line)
			continue
		}
		second += first + 1

		filePath := line[:first]
		rest := line[first:]
		hostPath := remapPath(filePath, hostRoot, containerRoot)
		out = append(out, hostPath+rest)
	}
	return strings.Join(out, "\n")
}

// remapGlobOutput rewrites each listed path from container-relative to
// host-absolute and caps the result at maxGlobResults entries.
func remapGlobOutput(stdout, hostRoot, containerRoot string) string {
	lines := strings.Split(stdout, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, remapPath(trimmed, hostRoot, containerRoot))
		if len(out) >= maxGlobResults {
			break
		}
	}
	return strings.Join(out, "\n")
}

// remapPath maps an absolute container path back to the host, or joins a
// relative path under hostRoot; pathmap.ToHost already handles both cases.
func remapPath(p, hostRoot, containerRoot string) string {
	return pathmap.ToHost(p, hostRoot, containerRoot)
}

func quoteContainerDir(containerPath string) string {
	dir := containerPath
	if idx := strings.LastIndexByte(containerPath, '/'); idx > 0 {
		dir = containerPath[:idx]
	} else if idx == 0 {
		dir = "/"
	}
	return cmdshell.QuoteDouble(dir)
}
