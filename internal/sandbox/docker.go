package sandbox

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
)

// Manager drives sandbox containers through the Docker daemon.
type Manager struct {
	client *client.Client
	config Config
	logger *zap.Logger
}

// NewManager creates a Docker-backed sandbox manager.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Verify Docker daemon is accessible
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("Docker daemon not accessible: %w", err)
	}

	return &Manager{
		client: cli,
		config: config,
		logger: logger,
	}, nil
}

// Launch starts a sandbox container from the spec. The container's main
// process is the student's shell; it stays alive unattached because the
// container allocates a tty with stdin open. The agent's fixed port is
// published on an ephemeral loopback port recorded on the Instance.
func (m *Manager) Launch(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	if err := m.ensureImage(ctx, spec.Image); err != nil {
		return nil, NewStartupError(fmt.Sprintf("failed to ensure image %s: %v", spec.Image, err), "")
	}

	volumeName := spec.Volume
	createdVolume := false
	if volumeName == "" {
		volumeName = "shellcamp-data-" + uuid.NewString()
		if _, err := m.client.VolumeCreate(ctx, volume.CreateOptions{Name: volumeName}); err != nil {
			return nil, NewStartupError(fmt.Sprintf("failed to create data volume: %v", err), "")
		}
		createdVolume = true
	}

	agentPort := nat.Port(protocol.Port + "/tcp")

	containerConfig := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Shell,
		WorkingDir: spec.Home,
		User:       spec.User,
		Env:        spec.Env,
		// The shell must survive with nobody attached to it.
		Tty:          true,
		OpenStdin:    true,
		ExposedPorts: nat.PortSet{agentPort: struct{}{}},
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeVolume,
				Source: volumeName,
				Target: DataDir,
			},
		},
		// Publish the agent port on an ephemeral loopback port.
		PortBindings: nat.PortMap{
			agentPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		},
		// Needed to read /proc/<pid>/cwd of the student's shell.
		CapAdd: []string{"CAP_SYS_PTRACE"},
		// Route for the in-container notify hook back to the host listener.
		ExtraHosts: []string{"host.docker.internal:host-gateway"},
		Resources: container.Resources{
			Memory:   m.config.memoryBytes(),
			NanoCPUs: m.config.nanoCPUs(),
			Ulimits: []*units.Ulimit{
				{Name: "nofile", Soft: 1024, Hard: 1024},
			},
		},
		// The shell exiting ends the session; never leave the husk around.
		AutoRemove: true,
	}

	name := "shellcamp-" + uuid.NewString()[:8]
	createResp, err := m.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		if createdVolume {
			_ = m.RemoveVolume(context.Background(), volumeName)
		}
		return nil, NewStartupError(fmt.Sprintf("failed to create container: %v", err), "")
	}

	inst := &Instance{
		ID:     createResp.ID,
		Image:  spec.Image,
		Volume: volumeName,
		spec:   spec,
		logs:   &LogBuffer{},
	}

	if err := m.client.ContainerStart(ctx, inst.ID, container.StartOptions{}); err != nil {
		m.cleanupFailedLaunch(inst, createdVolume)
		return nil, NewStartupError(fmt.Sprintf("failed to start container: %v", err), "")
	}

	port, err := m.publishedPort(ctx, inst.ID, agentPort)
	if err != nil {
		m.cleanupFailedLaunch(inst, createdVolume)
		return nil, NewStartupError(err.Error(), "")
	}
	inst.Port = port

	m.logger.Info("sandbox container started",
		zap.String("container", inst.ID[:12]),
		zap.String("image", spec.Image),
		zap.String("port", inst.Port))
	return inst, nil
}

// cleanupFailedLaunch removes the partial container, and the volume if this
// launch created it.
func (m *Manager) cleanupFailedLaunch(inst *Instance, createdVolume bool) {
	removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = m.client.ContainerRemove(removeCtx, inst.ID, container.RemoveOptions{Force: true})
	if createdVolume {
		_ = m.RemoveVolume(removeCtx, inst.Volume)
	}
}

// publishedPort looks up the loopback port Docker assigned to the agent port.
func (m *Manager) publishedPort(ctx context.Context, containerID string, port nat.Port) (string, error) {
	inspect, err := m.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports[port]
	if len(bindings) == 0 || bindings[0].HostPort == "" {
		return "", fmt.Errorf("no published port for %s", port)
	}
	return bindings[0].HostPort, nil
}

// ensureImage checks if the image exists locally, and pulls it if not.
func (m *Manager) ensureImage(ctx context.Context, imageName string) error {
	// Check if image exists
	_, _, err := m.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}

	// Image doesn't exist, pull it
	m.logger.Info("pulling image", zap.String("image", imageName))
	reader, err := m.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	// Drain the pull output (required for pull to complete)
	_, _ = io.Copy(io.Discard, reader)

	return nil
}

// StartAgent execs the agent inside the container as root and drains its
// output into the instance log buffer.
func (m *Manager) StartAgent(ctx context.Context, inst *Instance, cmd []string) error {
	execResp, err := m.client.ContainerExecCreate(ctx, inst.ID, container.ExecOptions{
		User:         "root",
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent exec: %w", err)
	}

	attach, err := m.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("failed to attach to agent: %w", err)
	}

	go func() {
		defer attach.Close()
		demuxStreams(attach.Reader, inst.logs, inst.logs)
	}()
	return nil
}

// Exec runs a command inside the container as the given user and waits for it.
func (m *Manager) Exec(ctx context.Context, inst *Instance, user string, cmd []string) (ExecResult, error) {
	execResp, err := m.client.ContainerExecCreate(ctx, inst.ID, container.ExecOptions{
		User:         user,
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := m.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr LogBuffer
	demuxStreams(attach.Reader, &stdout, &stderr)

	// The stream ending means the process exited, but the exec record can
	// lag behind it for a moment.
	var inspect container.ExecInspect
	for i := 0; i < 5; i++ {
		inspect, err = m.client.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return ExecResult{}, fmt.Errorf("failed to inspect exec: %w", err)
		}
		if !inspect.Running {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	return ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Code:   inspect.ExitCode,
	}, nil
}

// Commit snapshots the container filesystem into a throwaway image and
// returns its reference. Volumes are not part of the snapshot.
func (m *Manager) Commit(ctx context.Context, inst *Instance) (string, error) {
	ref := snapshotTag(time.Now().UnixNano())
	if _, err := m.client.ContainerCommit(ctx, inst.ID, container.CommitOptions{
		Reference: ref,
		Pause:     true,
	}); err != nil {
		return "", fmt.Errorf("failed to commit container: %w", err)
	}
	m.logger.Debug("committed snapshot", zap.String("image", ref))
	return ref, nil
}

// Relaunch replaces the container with one started from the given snapshot,
// keeping the staging volume.
func (m *Manager) Relaunch(ctx context.Context, inst *Instance, imageRef string) (*Instance, error) {
	if err := m.Stop(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to stop container for relaunch: %w", err)
	}

	spec := inst.spec
	spec.Image = imageRef
	spec.Volume = inst.Volume
	return m.Launch(ctx, spec)
}

// RemoveImage deletes a snapshot image.
func (m *Manager) RemoveImage(ctx context.Context, ref string) error {
	if _, err := m.client.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}

// Stop stops the container and waits for its auto-removal. Safe to call on a
// container that is already gone.
func (m *Manager) Stop(ctx context.Context, inst *Instance) error {
	timeout := m.config.stopSeconds()
	err := m.client.ContainerStop(ctx, inst.ID, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container: %w", err)
	}

	// Auto-removal can take a moment after the stop returns.
	statusCh, errCh := m.client.ContainerWait(ctx, inst.ID, container.WaitConditionRemoved)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to wait for container removal: %w", err)
		}
	case <-statusCh:
	}
	return nil
}

// RemoveVolume deletes a staging volume.
func (m *Manager) RemoveVolume(ctx context.Context, name string) error {
	if err := m.client.VolumeRemove(ctx, name, true); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove volume %s: %w", name, err)
	}
	return nil
}

// AttachCommand builds the docker attach command for the student's shell.
// The caller wires up the terminal and runs it.
func (m *Manager) AttachCommand(inst *Instance) *exec.Cmd {
	return exec.Command("docker", "attach", inst.ID)
}
