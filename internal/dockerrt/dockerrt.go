// Package dockerrt is the runtime driver: it invokes the OCI runtime via
// the Docker Engine API and captures stdout/stderr/exit code, the leaf
// component every other routing package is built on.
package dockerrt

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/portmantle/shipyard/internal/log"
)

// State is the three-way inspect outcome the lifecycle manager dispatches
// on.
type State int

const (
	StateAbsent State = iota
	StateStopped
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Mount describes one bind mount passed to ContainerCreate.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// CreateSpec is the full set of inputs needed to create a managed
// container.
type CreateSpec struct {
	Name    string
	Image   string
	Workdir string
	Network string
	Env     map[string]string
	Labels  map[string]string
	Mounts  []Mount
	Command []string
}

// ExecResult is the captured output of a container-side command.
type ExecResult struct {
	Stdout   string
	ExitCode int
}

// Runtime is the interface the lifecycle manager, the pre-hook, and the
// post-hook depend on. dockerRuntime is the only production
// implementation; tests substitute a fake.
type Runtime interface {
	Inspect(ctx context.Context, name string) (State, error)
	Create(ctx context.Context, spec CreateSpec) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Exec(ctx context.Context, name, command, workdir string) (ExecResult, error)
	List(ctx context.Context, labelFilter string, all bool) ([]ContainerInfo, error)
	CopyToContainer(ctx context.Context, name, hostPath, containerPath string) error
}

// ContainerInfo is one row of List's result.
type ContainerInfo struct {
	Name   string
	Status string
}

// dockerRuntime implements Runtime over the Docker Engine API.
type dockerRuntime struct {
	cli *client.Client
}

// New connects to the Docker daemon using the standard environment
// variables (DOCKER_HOST, etc.) and negotiates the API version.
func New() (Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &dockerRuntime{cli: cli}, nil
}

func (r *dockerRuntime) Inspect(ctx context.Context, name string) (State, error) {
	inspect, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StateAbsent, nil
		}
		return StateAbsent, fmt.Errorf("inspecting container %s: %w", name, err)
	}
	if inspect.State != nil && inspect.State.Running {
		return StateRunning, nil
	}
	return StateStopped, nil
}

func (r *dockerRuntime) Create(ctx context.Context, spec CreateSpec) error {
	if err := r.ensureImage(ctx, spec.Image); err != nil {
		return err
	}

	mounts := make([]mount.Mount, len(spec.Mounts))
	for i, m := range spec.Mounts {
		mounts[i] = mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		}
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	networkMode := container.NetworkMode("bridge")
	if spec.Network != "" {
		networkMode = container.NetworkMode(spec.Network)
	}

	command := spec.Command
	if len(command) == 0 {
		command = []string{"sleep", "infinity"}
	}

	_, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      spec.Image,
			Cmd:        command,
			WorkingDir: spec.Workdir,
			Env:        env,
			Labels:     spec.Labels,
			Tty:        false,
		},
		&container.HostConfig{
			Mounts:      mounts,
			NetworkMode: networkMode,
		},
		nil,
		nil,
		spec.Name,
	)
	if err != nil {
		return fmt.Errorf("creating container %s: %w", spec.Name, err)
	}
	return nil
}

func (r *dockerRuntime) Start(ctx context.Context, name string) error {
	if err := r.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting container %s: %w", name, err)
	}
	return nil
}

func (r *dockerRuntime) Stop(ctx context.Context, name string) error {
	if err := r.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("stopping container %s: %w", name, err)
	}
	return nil
}

func (r *dockerRuntime) Remove(ctx context.Context, name string) error {
	if err := r.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing container %s: %w", name, err)
	}
	return nil
}

func (r *dockerRuntime) Exec(ctx context.Context, name, command, workdir string) (ExecResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := r.cli.ContainerExecCreate(ctx, name, execCfg)
	if err != nil {
		return ExecResult{}, fmt.Errorf("creating exec in %s: %w", name, err)
	}

	resp, err := r.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("attaching exec in %s: %w", name, err)
	}
	defer resp.Close()

	// ContainerExecCreate never sets Tty, so the attached stream is
	// multiplexed per the Engine API and must be demuxed before the bytes
	// are usable as plain stdout text.
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return ExecResult{}, fmt.Errorf("demuxing exec output in %s: %w", name, err)
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("inspecting exec in %s: %w", name, err)
	}

	return ExecResult{Stdout: stdout.String(), ExitCode: inspect.ExitCode}, nil
}

func (r *dockerRuntime) List(ctx context.Context, labelFilter string, all bool) ([]ContainerInfo, error) {
	opts := container.ListOptions{All: all}
	if labelFilter != "" {
		opts.Filters = filters.NewArgs(filters.Arg("label", labelFilter))
	}

	containers, err := r.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		result = append(result, ContainerInfo{Name: name, Status: c.Status})
	}
	return result, nil
}

// CopyToContainer reads the file at hostPath and copies it into name at
// containerPath, mirroring `docker cp`. It builds a single-entry tar
// archive in memory since the Engine API's CopyToContainer endpoint
// accepts only a tar stream, never a raw file.
func (r *dockerRuntime) CopyToContainer(ctx context.Context, name, hostPath, containerPath string) error {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", hostPath, err)
	}
	info, err := os.Stat(hostPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", hostPath, err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name: filepath.Base(containerPath),
		Mode: int64(info.Mode().Perm()),
		Size: int64(len(data)),
	}); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", hostPath, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing tar content for %s: %w", hostPath, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar archive for %s: %w", hostPath, err)
	}

	destDir := filepath.Dir(containerPath)
	if err := r.cli.CopyToContainer(ctx, name, destDir, &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copying %s into container %s: %w", hostPath, name, err)
	}
	return nil
}

// ensureImage pulls image if it is not present locally.
func (r *dockerRuntime) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := r.cli.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspecting image %s: %w", imageName, err)
	}

	log.Info("pulling container image", "image", imageName)
	reader, err := r.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image %s: %w", imageName, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}
