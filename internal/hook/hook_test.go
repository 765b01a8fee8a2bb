package hook

import (
	"context"
	"errors"
	"sync"

	"github.com/portmantle/shipyard/internal/dockerrt"
	"github.com/portmantle/shipyard/internal/lifecycle"
)

// fakeScope resolves "root" scope via a fixed lookup table and "session"
// scope as the identity function, matching sessionscope.Resolver's
// contract without pulling in its LRU cache or parent-walk machinery.
type fakeScope struct {
	roots map[string]string
}

func (f *fakeScope) Resolve(ctx context.Context, sessionID, scope string) (string, error) {
	if scope == "session" {
		return sessionID, nil
	}
	if root, ok := f.roots[sessionID]; ok {
		return root, nil
	}
	return sessionID, nil
}

// fakeState is an in-memory stand-in for routingstate.Store.
type fakeState struct {
	mu       sync.Mutex
	bindings map[string]string
	getErr   error
	setErr   error
}

func newFakeState() *fakeState {
	return &fakeState{bindings: map[string]string{}}
}

func (f *fakeState) Get(scopeID string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindings[scopeID], nil
}

func (f *fakeState) Set(scopeID, containerName string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings[scopeID] = containerName
	return nil
}

// fakeLifecycle is an in-memory stand-in for lifecycle.Manager.
type fakeLifecycle struct {
	mu    sync.Mutex
	err   error
	calls []lifecycle.Spec
}

func (f *fakeLifecycle) EnsureRunning(ctx context.Context, spec lifecycle.Spec, opts lifecycle.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec)
	return f.err
}

var errLifecycleUnavailable = errors.New("container runtime unavailable")

// execCall records one Exec invocation against fakeRuntime.
type execCall struct {
	Container string
	Command   string
	Workdir   string
}

// copyCall records one CopyToContainer invocation against fakeRuntime.
type copyCall struct {
	Container     string
	HostPath      string
	ContainerPath string
}

// fakeRuntime is an in-memory stand-in for dockerrt.Runtime, used by the
// post-hook tests. execFunc, when set, computes the result for each Exec
// call from its command string; otherwise Exec returns a zero result.
type fakeRuntime struct {
	mu        sync.Mutex
	execCalls []execCall
	copyCalls []copyCall
	execFunc  func(command string) dockerrt.ExecResult
	execErr   error
	copyErr   error
}

func (f *fakeRuntime) Inspect(ctx context.Context, name string) (dockerrt.State, error) {
	return dockerrt.StateRunning, nil
}

func (f *fakeRuntime) Create(ctx context.Context, spec dockerrt.CreateSpec) error { return nil }
func (f *fakeRuntime) Start(ctx context.Context, name string) error              { return nil }
func (f *fakeRuntime) Stop(ctx context.Context, name string) error               { return nil }
func (f *fakeRuntime) Remove(ctx context.Context, name string) error             { return nil }

func (f *fakeRuntime) Exec(ctx context.Context, name, command, workdir string) (dockerrt.ExecResult, error) {
	f.mu.Lock()
	f.execCalls = append(f.execCalls, execCall{Container: name, Command: command, Workdir: workdir})
	f.mu.Unlock()
	if f.execErr != nil {
		return dockerrt.ExecResult{}, f.execErr
	}
	if f.execFunc != nil {
		return f.execFunc(command), nil
	}
	return dockerrt.ExecResult{}, nil
}

func (f *fakeRuntime) List(ctx context.Context, labelFilter string, all bool) ([]dockerrt.ContainerInfo, error) {
	return nil, nil
}

func (f *fakeRuntime) CopyToContainer(ctx context.Context, name, hostPath, containerPath string) error {
	f.mu.Lock()
	f.copyCalls = append(f.copyCalls, copyCall{Container: name, HostPath: hostPath, ContainerPath: containerPath})
	f.mu.Unlock()
	return f.copyErr
}
