// Package lifecycle drives the runtime driver to implement ensure-running:
// inspect, create if absent and allowed, start if stopped and allowed. It
// does not read or write routing state; callers persist bindings.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/portmantle/shipyard/internal/dockerrt"
	"github.com/portmantle/shipyard/internal/log"
)

// ErrContainerAbsent is returned when the named container does not exist
// and the caller did not allow creation.
var ErrContainerAbsent = errors.New("container does not exist")

// ErrProjectPathMissing is returned when the host project path to mount
// does not exist on disk at create time.
var ErrProjectPathMissing = errors.New("host project path does not exist")

// Spec describes the container ensureRunning should converge to.
type Spec struct {
	Name        string
	Image       string
	Workdir     string
	Network     string
	Env         map[string]string
	Mounts      []dockerrt.Mount
	Command     []string
	ProjectPath string
	ProjectID   string
	ScopeID     string
	AutoStart   bool
}

// Options controls ensureRunning's willingness to mutate the container.
type Options struct {
	AllowCreate bool
}

// Manager ensures a named container is running, collapsing concurrent
// requests for the same container name into a single runtime call.
type Manager struct {
	runtime dockerrt.Runtime
	group   singleflight.Group
}

// New returns a Manager driving runtime.
func New(runtime dockerrt.Runtime) *Manager {
	return &Manager{runtime: runtime}
}

// EnsureRunning inspects spec.Name, creates it if absent and allowed,
// starts it if stopped and spec.AutoStart, and returns nil once the
// container is running (or once it has given up with an error). A stopped
// container with AutoStart off is left stopped and also yields nil.
func (m *Manager) EnsureRunning(ctx context.Context, spec Spec, opts Options) error {
	_, err, _ := m.group.Do(spec.Name, func() (any, error) {
		return nil, m.ensureRunningOnce(ctx, spec, opts)
	})
	return err
}

func (m *Manager) ensureRunningOnce(ctx context.Context, spec Spec, opts Options) error {
	state, err := m.runtime.Inspect(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("inspecting container %s: %w", spec.Name, err)
	}

	switch state {
	case dockerrt.StateAbsent:
		if !opts.AllowCreate {
			return fmt.Errorf("container %s does not exist: %w", spec.Name, ErrContainerAbsent)
		}
		if spec.ProjectPath != "" {
			if _, err := os.Stat(spec.ProjectPath); err != nil {
				return fmt.Errorf("project path %s: %w", spec.ProjectPath, ErrProjectPathMissing)
			}
		}
		return m.create(ctx, spec)

	case dockerrt.StateStopped:
		if !spec.AutoStart {
			log.Warn("container is stopped and autoStart is disabled, leaving it stopped", "container", spec.Name)
			return nil
		}
		if err := m.runtime.Start(ctx, spec.Name); err != nil {
			return fmt.Errorf("starting container %s: %w", spec.Name, err)
		}
		return nil

	case dockerrt.StateRunning:
		return nil

	default:
		return fmt.Errorf("unexpected container state for %s", spec.Name)
	}
}

func (m *Manager) create(ctx context.Context, spec Spec) error {
	labels := map[string]string{
		"owner.project": spec.ProjectID,
		"owner.scope":   spec.ScopeID,
	}

	var mounts []dockerrt.Mount
	if spec.ProjectPath != "" {
		mounts = append(mounts, dockerrt.Mount{Source: spec.ProjectPath, Target: spec.Workdir})
	}
	mounts = append(mounts, spec.Mounts...)

	if err := m.runtime.Create(ctx, dockerrt.CreateSpec{
		Name:    spec.Name,
		Image:   spec.Image,
		Workdir: spec.Workdir,
		Network: spec.Network,
		Env:     spec.Env,
		Labels:  labels,
		Mounts:  mounts,
		Command: spec.Command,
	}); err != nil {
		return fmt.Errorf("creating container %s: %w", spec.Name, err)
	}

	if err := m.runtime.Start(ctx, spec.Name); err != nil {
		return fmt.Errorf("starting newly created container %s: %w", spec.Name, err)
	}
	return nil
}
