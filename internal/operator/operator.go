// Package operator implements the five agent-callable (and CLI-callable)
// container commands: create, use, clear, info, list. Each is a thin
// wrapper over the session scope resolver, routing state store, lifecycle
// manager, and runtime driver — the same primitives the hooks use, so
// behavior cannot drift between the agent-tool surface and the CLI.
package operator

import (
	"bytes"
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"

	"github.com/portmantle/shipyard/internal/config"
	"github.com/portmantle/shipyard/internal/containername"
	"github.com/portmantle/shipyard/internal/dockerrt"
	"github.com/portmantle/shipyard/internal/lifecycle"
)

// ScopeResolver is the session scope resolver, as seen by the operator.
type ScopeResolver interface {
	Resolve(ctx context.Context, sessionID, scope string) (string, error)
}

// StateStore is the routing state store, as seen by the operator.
type StateStore interface {
	Get(scopeID string) (string, error)
	Set(scopeID, containerName string) error
	Clear(scopeID string) (string, error)
}

// LifecycleEnsurer ensures a container converges to running.
type LifecycleEnsurer interface {
	EnsureRunning(ctx context.Context, spec lifecycle.Spec, opts lifecycle.Options) error
}

// Manager implements the five operator tools for one project.
type Manager struct {
	cfg          *config.Config
	scope        ScopeResolver
	state        StateStore
	lifecycleMgr LifecycleEnsurer
	runtime      dockerrt.Runtime
	projectID    string
	projectRoot  string
}

// New builds a Manager for one project.
func New(cfg *config.Config, scope ScopeResolver, state StateStore, lifecycleMgr LifecycleEnsurer, runtime dockerrt.Runtime, projectID, projectRoot string) *Manager {
	return &Manager{
		cfg:          cfg,
		scope:        scope,
		state:        state,
		lifecycleMgr: lifecycleMgr,
		runtime:      runtime,
		projectID:    projectID,
		projectRoot:  projectRoot,
	}
}

// CreateOptions overrides the project's container defaults for one create
// call. Any zero-valued field other than Name falls back to
// Config.container; an empty Name is derived from the project and scope.
type CreateOptions struct {
	Name        string
	Image       string
	Workdir     string
	ProjectPath string
	Network     string
	Mounts      []string
	Command     []string
	Env         map[string]string
}

// Create computes (or accepts) a container name, ensures it exists and is
// running, and binds it to the calling session's scope.
func (m *Manager) Create(ctx context.Context, sessionID string, opts CreateOptions) (string, error) {
	scopeID, err := m.scope.Resolve(ctx, sessionID, m.cfg.Scope)
	if err != nil {
		return "", fmt.Errorf("resolving session scope: %w", err)
	}

	name := opts.Name
	if name == "" {
		if sessionID == "" {
			return "", fmt.Errorf("no container name given and no session available to derive one")
		}
		name = containername.BuildName(m.cfg.Container.NamePrefix, m.projectID, scopeID)
	}

	spec := m.spec(name, scopeID, opts)
	if err := m.lifecycleMgr.EnsureRunning(ctx, spec, lifecycle.Options{AllowCreate: true}); err != nil {
		return "", fmt.Errorf("creating container %s: %w", name, err)
	}

	if err := m.state.Set(scopeID, name); err != nil {
		return "", fmt.Errorf("binding scope to container %s: %w", name, err)
	}

	return fmt.Sprintf("Container %s is running and bound to this session.", name), nil
}

// Use binds an existing named container to the calling session's scope,
// erroring if it does not exist.
func (m *Manager) Use(ctx context.Context, sessionID, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("a container name is required")
	}

	state, err := m.runtime.Inspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("inspecting container %s: %w", name, err)
	}
	if state == dockerrt.StateAbsent {
		return "", fmt.Errorf("container %s does not exist", name)
	}

	scopeID, err := m.scope.Resolve(ctx, sessionID, m.cfg.Scope)
	if err != nil {
		return "", fmt.Errorf("resolving session scope: %w", err)
	}

	if err := m.state.Set(scopeID, name); err != nil {
		return "", fmt.Errorf("binding scope to container %s: %w", name, err)
	}

	return fmt.Sprintf("Bound this session to container %s (%s).", name, state), nil
}

// ClearOptions controls what Clear does to the container it unbinds.
type ClearOptions struct {
	Stop   bool
	Remove bool
}

// Clear removes the binding for the calling session's scope and, per
// opts, stops and/or removes the container it was bound to. Stop and
// remove are attempted independently so a failure in one does not hide a
// failure in the other.
func (m *Manager) Clear(ctx context.Context, sessionID string, opts ClearOptions) (string, error) {
	scopeID, err := m.scope.Resolve(ctx, sessionID, m.cfg.Scope)
	if err != nil {
		return "", fmt.Errorf("resolving session scope: %w", err)
	}

	boundName, err := m.state.Clear(scopeID)
	if err != nil {
		return "", fmt.Errorf("clearing routing entry: %w", err)
	}
	if boundName == "" {
		return "No container is bound to this session.", nil
	}

	var errs error
	if opts.Stop {
		if err := m.runtime.Stop(ctx, boundName); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stopping %s: %w", boundName, err))
		}
	}
	if opts.Remove {
		if err := m.runtime.Remove(ctx, boundName); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("removing %s: %w", boundName, err))
		}
	}
	if errs != nil {
		return "", errs
	}

	return fmt.Sprintf("Cleared binding to container %s.", boundName), nil
}

// Info reports the container bound to the calling session's scope and its
// current runtime state.
func (m *Manager) Info(ctx context.Context, sessionID string) (string, error) {
	scopeID, err := m.scope.Resolve(ctx, sessionID, m.cfg.Scope)
	if err != nil {
		return "", fmt.Errorf("resolving session scope: %w", err)
	}

	name, err := m.state.Get(scopeID)
	if err != nil {
		return "", fmt.Errorf("reading routing entry: %w", err)
	}
	if name == "" {
		return "No container is bound to this session.", nil
	}

	state, err := m.runtime.Inspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("inspecting container %s: %w", name, err)
	}

	return fmt.Sprintf("%s: %s", name, runtimeStateLabel(state)), nil
}

// List reports the containers labelled owner.project for this project:
// running ones only, or stopped ones as well if all is true.
func (m *Manager) List(ctx context.Context, all bool) (string, error) {
	containers, err := m.runtime.List(ctx, fmt.Sprintf("owner.project=%s", m.projectID), all)
	if err != nil {
		return "", fmt.Errorf("listing containers: %w", err)
	}
	if len(containers) == 0 {
		return "No containers found.", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS")
	for _, c := range containers {
		fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Status)
	}
	w.Flush()
	return buf.String(), nil
}

func (m *Manager) spec(name, scopeID string, opts CreateOptions) lifecycle.Spec {
	c := m.cfg.Container

	image := opts.Image
	if image == "" {
		image = c.Image
	}
	workdir := opts.Workdir
	if workdir == "" {
		workdir = c.Workdir
	}
	projectPath := opts.ProjectPath
	if projectPath == "" {
		projectPath = c.ProjectPathOverride
	}
	if projectPath == "" {
		projectPath = m.projectRoot
	}
	network := opts.Network
	if network == "" {
		network = c.Network
	}
	env := opts.Env
	if env == nil {
		env = c.Env
	}
	command := opts.Command
	if command == nil {
		command = c.Command
	}

	rawMounts := opts.Mounts
	if rawMounts == nil {
		rawMounts = c.Mounts
	}
	var mounts []dockerrt.Mount
	for _, raw := range rawMounts {
		parsed, err := config.ParseMount(raw)
		if err != nil {
			continue
		}
		mounts = append(mounts, dockerrt.Mount{Source: parsed.Source, Target: parsed.Target, ReadOnly: parsed.ReadOnly})
	}

	return lifecycle.Spec{
		Name:        name,
		Image:       image,
		Workdir:     workdir,
		Network:     network,
		Env:         env,
		Mounts:      mounts,
		Command:     command,
		ProjectPath: projectPath,
		ProjectID:   m.projectID,
		ScopeID:     scopeID,
		AutoStart:   true,
	}
}

func runtimeStateLabel(s dockerrt.State) string {
	if s == dockerrt.StateAbsent {
		return "missing"
	}
	return s.String()
}
