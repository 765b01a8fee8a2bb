package hook

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portmantle/shipyard/internal/dockerrt"
)

// These mirror the six literal scenarios named in this router's testable
// properties: an intercepted shell call, a bypassed one, a read
// round-trip, grep path remapping, write sync, and fallback-to-host.

func TestScenario1_InterceptShellRootScopeAutoCreate(t *testing.T) {
	cfg := rootScopeConfig()
	state := newFakeState()
	lc := &fakeLifecycle{}
	h, pending := newTestPreHook(cfg, &fakeScope{}, state, lc, "/home/u/p")
	defer pending.Close()

	args := Args{"command": "ls && pwd", "cwd": "/home/u/p/sub"}
	got := h.Handle(context.Background(), "shell", "sess-ROOT-xyz", "c1", args)

	assert.Equal(t, "oc-abcdef12-sess", state.bindings["sess-ROOT-xyz"])

	command, _ := got["command"].(string)
	assert.Contains(t, command, "oc-abcdef12-sess")
	assert.Contains(t, command, "/workspace/sub", "want --workdir mapped to /workspace/sub")
	assert.Contains(t, command, `sh -lc "ls && pwd"`, "want the original command embedded verbatim")
}

func TestScenario2_BypassPrefix(t *testing.T) {
	cfg := rootScopeConfig()
	state := newFakeState()
	lc := &fakeLifecycle{}
	h, pending := newTestPreHook(cfg, &fakeScope{}, state, lc, "/home/u/p")
	defer pending.Close()

	args := Args{"command": "docker ps"}
	got := h.Handle(context.Background(), "shell", "sess-ROOT-xyz", "c1", args)

	assert.Equal(t, "docker ps", got["command"])
	assert.Empty(t, state.bindings, "no routing entry should be created for a bypassed command")
	assert.Empty(t, lc.calls, "no container should be created for a bypassed command")
}

func TestScenario3_ReadRoundTrip(t *testing.T) {
	cfg := rootScopeConfig()
	preHook, pending := newTestPreHook(cfg, &fakeScope{}, newFakeState(), &fakeLifecycle{}, "/home/u/p")
	defer pending.Close()

	preHook.Handle(context.Background(), "read", "sess-1", "c1", Args{"filePath": "/home/u/p/src/x.ts"})

	rt := &fakeRuntime{execFunc: func(command string) dockerrt.ExecResult {
		if strings.Contains(command, "/workspace/src/x.ts") {
			return dockerrt.ExecResult{Stdout: "AB\n", ExitCode: 0}
		}
		return dockerrt.ExecResult{ExitCode: 1}
	}}
	postHook := NewPostHook(rt, pending)

	output := &Output{Output: "stale host content"}
	postHook.Handle(context.Background(), "read", "c1", output)

	assert.Equal(t, "AB\n", output.Output)
}

func TestScenario4_GrepWithRelativePaths(t *testing.T) {
	pending := NewPendingCalls(0, 0)
	defer pending.Close()
	pending.Stage("c1", PendingCall{
		Kind: "grep", ContainerName: "oc-abcdef12-sess",
		HostRoot: "/home/u/p", ContainerRoot: "/workspace",
		Pattern: "TODO",
	})

	rt := &fakeRuntime{execFunc: func(command string) dockerrt.ExecResult {
		return dockerrt.ExecResult{
			Stdout:   "src/a.ts|42|  TODO: foo\nsrc/b.ts|7| TODO: bar",
			ExitCode: 0,
		}
	}}
	postHook := NewPostHook(rt, pending)

	output := &Output{}
	postHook.Handle(context.Background(), "grep", "c1", output)

	want := "/home/u/p/src/a.ts|42|  TODO: foo\n/home/u/p/src/b.ts|7| TODO: bar"
	assert.Equal(t, want, output.Output)
}

func TestScenario5_WriteSync(t *testing.T) {
	cfg := rootScopeConfig()
	preHook, pending := newTestPreHook(cfg, &fakeScope{}, newFakeState(), &fakeLifecycle{}, "/home/u/p")
	defer pending.Close()

	preHook.Handle(context.Background(), "write", "sess-1", "c1", Args{"filePath": "/home/u/p/src/new.ts"})

	rt := &fakeRuntime{}
	postHook := NewPostHook(rt, pending)
	postHook.Handle(context.Background(), "write", "c1", &Output{})

	require.Len(t, rt.copyCalls, 1)
	call := rt.copyCalls[0]
	assert.Equal(t, "/home/u/p/src/new.ts", call.HostPath)
	assert.Equal(t, "/workspace/src/new.ts", call.ContainerPath)
	require.Len(t, rt.execCalls, 1)
	assert.Contains(t, rt.execCalls[0].Command, "/workspace/src", "want a mkdir -p targeting /workspace/src")
}

func TestScenario6_ContainerUnavailableWithFallback(t *testing.T) {
	cfg := rootScopeConfig()
	cfg.FallbackToHost = true
	lc := &fakeLifecycle{err: errLifecycleUnavailable}
	preHook, pending := newTestPreHook(cfg, &fakeScope{}, newFakeState(), lc, "/home/u/p")
	defer pending.Close()

	shellArgs := Args{"command": "ls"}
	got := preHook.Handle(context.Background(), "shell", "sess-1", "c1", shellArgs)
	assert.Equal(t, "ls", got["command"], "want unchanged under fallbackToHost")

	preHook.Handle(context.Background(), "read", "sess-1", "c2", Args{"filePath": "/home/u/p/x.ts"})
	_, ok := pending.Take("c2")
	assert.False(t, ok, "a read call should not be staged when the container is unavailable and fallback applies")

	rt := &fakeRuntime{}
	postHook := NewPostHook(rt, pending)
	output := &Output{Output: "host result"}
	postHook.Handle(context.Background(), "read", "c2", output)
	assert.Equal(t, "host result", output.Output, "want untouched host result")
}
