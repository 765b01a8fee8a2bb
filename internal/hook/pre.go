package hook

import (
	"context"
	"fmt"

	"github.com/portmantle/shipyard/internal/cmdshell"
	"github.com/portmantle/shipyard/internal/config"
	"github.com/portmantle/shipyard/internal/containername"
	"github.com/portmantle/shipyard/internal/dockerrt"
	"github.com/portmantle/shipyard/internal/lifecycle"
	"github.com/portmantle/shipyard/internal/log"
	"github.com/portmantle/shipyard/internal/pathmap"
)

// Args is the mutable argument bag the agent framework hands the pre-hook
// and the post-hook's output record mirrors; keys are tool-specific
// (command, cwd, env, filePath, path, pattern, include, ...).
type Args map[string]any

// ScopeResolver is the session scope resolver, as seen by the pre-hook.
type ScopeResolver interface {
	Resolve(ctx context.Context, sessionID, scope string) (string, error)
}

// StateStore is the routing state store, as seen by the pre-hook.
type StateStore interface {
	Get(scopeID string) (string, error)
	Set(scopeID, containerName string) error
}

// LifecycleEnsurer ensures a container converges to running.
type LifecycleEnsurer interface {
	EnsureRunning(ctx context.Context, spec lifecycle.Spec, opts lifecycle.Options) error
}

// PreHook is the dispatch brain: resolves a target container for an
// outgoing tool call, ensures it is running, and either rewrites the call
// (shell) or stages a PendingCall for the post-hook (read/write/edit/
// grep/glob/list).
type PreHook struct {
	cfg          *config.Config
	scope        ScopeResolver
	state        StateStore
	lifecycleMgr LifecycleEnsurer
	pending      *PendingCalls
	projectID    string
	projectRoot  string
}

// NewPreHook builds a PreHook for one project. projectID identifies the
// project for container labels and name generation; projectRoot is the
// host directory the container mounts by default.
func NewPreHook(cfg *config.Config, scope ScopeResolver, state StateStore, lifecycleMgr LifecycleEnsurer, pending *PendingCalls, projectID, projectRoot string) *PreHook {
	return &PreHook{
		cfg:          cfg,
		scope:        scope,
		state:        state,
		lifecycleMgr: lifecycleMgr,
		pending:      pending,
		projectID:    projectID,
		projectRoot:  projectRoot,
	}
}

// Handle runs the full pre-execution dispatch for one tool call and
// returns the (possibly rewritten) args the agent framework should use.
func (h *PreHook) Handle(ctx context.Context, toolName, sessionID, callID string, args Args) Args {
	if args == nil {
		args = Args{}
	}
	if !h.cfg.Enabled || !h.cfg.IsToolIntercepted(toolName) || sessionID == "" {
		return args
	}
	if toolName == "shell" {
		if command, _ := stringArg(args, "command"); command == "" || h.cfg.HasBypassPrefix(command) {
			return args
		}
	}

	// Tagged here and cleared by the post-hook when it consumes the call
	// staged under this id, so every log line the container round trip
	// produces carries the same call_id. Calls that stage nothing (shell
	// rewrites, host fallbacks) leave the tag in place until the next
	// SetCallID.
	log.SetCallID(callID)

	scopeID, err := h.scope.Resolve(ctx, sessionID, h.cfg.Scope)
	if err != nil {
		log.Warn("resolving session scope, executing on host", "tool", toolName, "error", err)
		return args
	}

	containerName, synthesized, err := h.resolveContainerName(scopeID)
	if err != nil {
		log.Warn("reading routing state, executing on host", "scope", scopeID, "error", err)
		return args
	}
	if containerName == "" {
		log.Info("no container resolved for scope, executing on host", "scope", scopeID, "tool", toolName)
		return args
	}

	spec := h.containerSpec(containerName, scopeID)
	if err := h.lifecycleMgr.EnsureRunning(ctx, spec, lifecycle.Options{AllowCreate: h.cfg.Container.AutoCreate}); err != nil {
		log.Warn("ensuring container is running", "container", containerName, "error", err)
		if h.cfg.FallbackToHost {
			return args
		}
		return h.failClosed(toolName, args, err)
	}

	if synthesized {
		if err := h.state.Set(scopeID, containerName); err != nil {
			log.Warn("persisting routing entry", "scope", scopeID, "container", containerName, "error", err)
		}
	}

	return h.dispatch(toolName, containerName, callID, args)
}

// resolveContainerName implements spec §4.7's three-step resolution order:
// a pinned shared container, then the existing binding, then a freshly
// synthesised name if autoCreate allows it.
func (h *PreHook) resolveContainerName(scopeID string) (name string, synthesized bool, err error) {
	if h.cfg.Container.Name != "" {
		return h.cfg.Container.Name, false, nil
	}

	bound, err := h.state.Get(scopeID)
	if err != nil {
		return "", false, err
	}
	if bound != "" {
		return bound, false, nil
	}

	if h.cfg.Container.AutoCreate {
		return containername.BuildName(h.cfg.Container.NamePrefix, h.projectID, scopeID), true, nil
	}
	return "", false, nil
}

func (h *PreHook) containerSpec(containerName, scopeID string) lifecycle.Spec {
	c := h.cfg.Container

	projectPath := c.ProjectPathOverride
	if projectPath == "" {
		projectPath = h.projectRoot
	}

	var mounts []dockerrt.Mount
	for _, raw := range c.Mounts {
		m, err := config.ParseMount(raw)
		if err != nil {
			log.Warn("skipping malformed container mount", "mount", raw, "error", err)
			continue
		}
		mounts = append(mounts, dockerrt.Mount{Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
	}

	return lifecycle.Spec{
		Name:        containerName,
		Image:       c.Image,
		Workdir:     c.Workdir,
		Network:     c.Network,
		Env:         c.Env,
		Mounts:      mounts,
		Command:     c.Command,
		ProjectPath: projectPath,
		ProjectID:   h.projectID,
		ScopeID:     scopeID,
		AutoStart:   c.AutoStart,
	}
}

// failClosed surfaces a lifecycle error to the agent: for shell calls it
// rewrites args.command to a visible failure command; for file-family
// tools there is no equivalent error channel, so the call is simply left
// unstaged and unrewritten, and the agent runs on host.
func (h *PreHook) failClosed(toolName string, args Args, err error) Args {
	if toolName == "shell" {
		args["command"] = cmdshell.Failure(fmt.Sprintf("shipyard: %v", err))
	}
	return args
}

func (h *PreHook) dispatch(toolName, containerName, callID string, args Args) Args {
	switch toolName {
	case "shell":
		return h.dispatchShell(containerName, args)
	case "read":
		h.dispatchRead(containerName, callID, args)
	case "write":
		h.dispatchWriteOrEdit("write", containerName, callID, args)
	case "edit":
		h.dispatchWriteOrEdit("edit", containerName, callID, args)
	case "grep":
		h.dispatchGrep(containerName, callID, args)
	case "glob":
		h.dispatchGlob(containerName, callID, args)
	case "list":
		h.dispatchList(containerName, callID, args)
	}
	return args
}

func (h *PreHook) dispatchShell(containerName string, args Args) Args {
	command, _ := stringArg(args, "command")
	if command == "" || h.cfg.HasBypassPrefix(command) {
		return args
	}

	cwd, _ := stringArg(args, "cwd")
	if cwd == "" {
		cwd = h.projectRoot
	}
	containerWorkdir := pathmap.ToContainer(cwd, h.projectRoot, h.cfg.Container.Workdir)

	env, _ := args["env"].(map[string]string)

	args["command"] = cmdshell.ExecWrapper(h.cfg.RuntimeBinary, containerName, command, containerWorkdir, env)
	return args
}

func (h *PreHook) dispatchRead(containerName, callID string, args Args) {
	hostPath, _ := stringArg(args, "filePath")
	if hostPath == "" || !pathmap.IsWithin(hostPath, h.projectRoot) {
		return
	}
	containerPath := pathmap.ToContainer(hostPath, h.projectRoot, h.cfg.Container.Workdir)
	h.pending.Stage(callID, PendingCall{
		Kind:          "read",
		ContainerName: containerName,
		HostPath:      hostPath,
		ContainerPath: containerPath,
	})
}

func (h *PreHook) dispatchWriteOrEdit(kind, containerName, callID string, args Args) {
	hostPath, _ := stringArg(args, "filePath", "path")
	if hostPath == "" || !pathmap.IsWithin(hostPath, h.projectRoot) {
		return
	}
	containerPath := pathmap.ToContainer(hostPath, h.projectRoot, h.cfg.Container.Workdir)
	h.pending.Stage(callID, PendingCall{
		Kind:          kind,
		ContainerName: containerName,
		HostPath:      hostPath,
		ContainerPath: containerPath,
	})
}

func (h *PreHook) dispatchGrep(containerName, callID string, args Args) {
	pattern, _ := stringArg(args, "pattern")
	if pattern == "" {
		return
	}
	hostRoot, _ := stringArg(args, "path")
	if hostRoot == "" {
		hostRoot = h.projectRoot
	}
	if !pathmap.IsWithin(hostRoot, h.projectRoot) {
		return
	}
	include, _ := stringArg(args, "include", "glob")

	containerRoot := pathmap.ToContainer(hostRoot, h.projectRoot, h.cfg.Container.Workdir)
	h.pending.Stage(callID, PendingCall{
		Kind:          "grep",
		ContainerName: containerName,
		HostRoot:      hostRoot,
		ContainerRoot: containerRoot,
		Pattern:       pattern,
		Include:       include,
	})
}

func (h *PreHook) dispatchGlob(containerName, callID string, args Args) {
	pattern, _ := stringArg(args, "pattern")
	if pattern == "" {
		return
	}
	hostRoot, _ := stringArg(args, "path")
	if hostRoot == "" {
		hostRoot = h.projectRoot
	}
	if !pathmap.IsWithin(hostRoot, h.projectRoot) {
		return
	}

	containerRoot := pathmap.ToContainer(hostRoot, h.projectRoot, h.cfg.Container.Workdir)
	h.pending.Stage(callID, PendingCall{
		Kind:          "glob",
		ContainerName: containerName,
		HostRoot:      hostRoot,
		ContainerRoot: containerRoot,
		Pattern:       pattern,
	})
}

func (h *PreHook) dispatchList(containerName, callID string, args Args) {
	hostPath, _ := stringArg(args, "path", "dir", "directory")
	if hostPath == "" {
		hostPath = h.projectRoot
	}
	if !pathmap.IsWithin(hostPath, h.projectRoot) {
		return
	}
	containerPath := pathmap.ToContainer(hostPath, h.projectRoot, h.cfg.Container.Workdir)
	h.pending.Stage(callID, PendingCall{
		Kind:          "list",
		ContainerName: containerName,
		HostPath:      hostPath,
		ContainerPath: containerPath,
	})
}

// stringArg returns the first of keys present in args as a string, and the
// key it was found under.
func stringArg(args Args, keys ...string) (string, string) {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, k
			}
		}
	}
	return "", ""
}
