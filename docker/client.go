package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

const (
	pingTimeout       = 3 * time.Second
	stopTimeoutSecs   = 10
	defaultRestartPol = "unless-stopped"
)

// ConnectionStrategy names one way of reaching the container engine.
type ConnectionStrategy struct {
	Name string
	Host string // empty means environment-default configuration
}

// DefaultConnectionStrategies returns the strategies tried in order at
// startup. The host-bridge endpoint covers desktop engine installs that
// expose the daemon to containers, the TCP endpoint covers daemons configured
// without TLS, the socket covers standard Linux hosts.
func DefaultConnectionStrategies() []ConnectionStrategy {
	return []ConnectionStrategy{
		{Name: "host-bridge tcp", Host: "tcp://host.docker.internal:2375"},
		{Name: "local tcp", Host: "tcp://localhost:2375"},
		{Name: "unix socket", Host: "unix:///var/run/docker.sock"},
		{Name: "environment default", Host: ""},
	}
}

// DockerRuntime implements ContainerRuntime against a real Docker engine.
type DockerRuntime struct {
	cli      *client.Client
	strategy string
}

// Connect tries each strategy in order until one answers a ping, and returns
// a runtime bound to that connection. The connection is resolved once here;
// callers hold the resulting runtime for the process lifetime. If every
// strategy fails the returned error wraps ErrRuntimeUnavailable.
func Connect(ctx context.Context, strategies []ConnectionStrategy) (*DockerRuntime, error) {
	if len(strategies) == 0 {
		strategies = DefaultConnectionStrategies()
	}

	var attempts []string
	for _, s := range strategies {
		cli, err := newSDKClient(s.Host)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		_, err = cli.Ping(pingCtx)
		cancel()
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name, err))
			if closeErr := cli.Close(); closeErr != nil {
				slog.Debug("Failed to close Docker client", "error", closeErr)
			}
			continue
		}

		slog.Info("Connected to Docker engine",
			"layer", "docker",
			"strategy", s.Name,
		)
		return &DockerRuntime{cli: cli, strategy: s.Name}, nil
	}

	return nil, fmt.Errorf("%w: all connection strategies failed: %s",
		ErrRuntimeUnavailable, strings.Join(attempts, "; "))
}

func newSDKClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}
	return client.NewClientWithOpts(opts...)
}

// CLIAvailable probes the docker CLI binary with a lightweight version check.
// The SDK connection and the CLI can be available independently, so this is
// deliberately separate from Connect.
func CLIAvailable(ctx context.Context, command string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, command, "version", "--format", "{{.Client.Version}}")
	if err := cmd.Run(); err != nil {
		slog.Debug("Docker CLI probe failed",
			"layer", "docker",
			"command", command,
			"error", err,
		)
		return false
	}
	return true
}

// Strategy returns the name of the connection strategy that succeeded.
func (r *DockerRuntime) Strategy() string {
	return r.strategy
}

// Close releases the underlying SDK client.
func (r *DockerRuntime) Close() error {
	if r.cli == nil {
		return nil
	}
	return r.cli.Close()
}

// Ping checks engine connectivity.
func (r *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	return nil
}

// BuildImage builds an image from path, streaming output lines to onOutput.
// A stale-cache failure is retried exactly once with caching disabled and a
// forced base-image pull.
func (r *DockerRuntime) BuildImage(ctx context.Context, path, tag string, onOutput func(string)) error {
	return buildWithCacheRetry(tag, onOutput, func(noCache bool) error {
		return r.buildOnce(ctx, path, tag, noCache, onOutput)
	})
}

// buildWithCacheRetry runs buildFn with caching enabled and, on a stale-cache
// failure only, retries exactly once with noCache set. Any other error, and
// any error from the retry itself, is surfaced as-is.
func buildWithCacheRetry(tag string, onOutput func(string), buildFn func(noCache bool) error) error {
	err := buildFn(false)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheStale) {
		return err
	}

	slog.Warn("Image build hit stale cache, retrying without cache",
		"layer", "docker",
		"operation", "build_image",
		"tag", tag,
		"error", err,
	)
	if onOutput != nil {
		onOutput("Build cache appears stale, retrying with --no-cache --pull")
	}
	return buildFn(true)
}

func (r *DockerRuntime) buildOnce(ctx context.Context, path, tag string, noCache bool, onOutput func(string)) error {
	buildCtx, err := archive.TarWithOptions(path, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer func() {
		if closeErr := buildCtx.Close(); closeErr != nil {
			slog.Debug("Failed to close build context", "error", closeErr)
		}
	}()

	resp, err := r.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
		NoCache:     noCache,
		PullParent:  noCache,
	})
	if err != nil {
		return fmt.Errorf("failed to start image build: %w", classifyBuildError(err.Error()))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close build response", "error", closeErr)
		}
	}()

	return consumeBuildOutput(resp.Body, onOutput)
}

// consumeBuildOutput decodes the engine's JSON build stream, forwarding
// rendered lines to onOutput. A message carrying an error terminates the
// stream and is classified into the build error taxonomy.
func consumeBuildOutput(body io.Reader, onOutput func(string)) error {
	decoder := json.NewDecoder(body)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode build output: %w", err)
		}

		if errMsg := msg.errorMessage(); errMsg != "" {
			return fmt.Errorf("image build failed: %w", classifyBuildError(errMsg))
		}

		if line := msg.render(); line != "" && onOutput != nil {
			onOutput(line)
		}
	}
	return nil
}

// RunContainer creates and starts a detached container and returns its ID.
func (r *DockerRuntime) RunContainer(ctx context.Context, opts RunOptions) (string, error) {
	if opts.Image == "" {
		return "", fmt.Errorf("image name cannot be empty")
	}
	if opts.Name == "" {
		return "", fmt.Errorf("container name cannot be empty")
	}

	containerPort, err := nat.NewPort("tcp", strconv.Itoa(opts.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", opts.ContainerPort, err)
	}

	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}

	restartPolicy := opts.RestartPolicy
	if restartPolicy == "" {
		restartPolicy = defaultRestartPol
	}

	resp, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        opts.Image,
			Env:          env,
			ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				containerPort: []nat.PortBinding{{
					HostIP:   "0.0.0.0",
					HostPort: strconv.Itoa(opts.HostPort),
				}},
			},
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyMode(restartPolicy),
			},
		},
		nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", opts.Name, err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container %s: %w", opts.Name, err)
	}

	return resp.ID, nil
}

// StopAndRemove stops and removes the container. A missing container is
// treated as already cleaned up.
func (r *DockerRuntime) StopAndRemove(ctx context.Context, containerID string) error {
	timeout := stopTimeoutSecs
	if err := r.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to stop container %s: %w", containerID, err)
		}
		return nil
	}

	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove container %s: %w", containerID, err)
		}
	}
	return nil
}

// RestartContainer restarts the container in place.
func (r *DockerRuntime) RestartContainer(ctx context.Context, containerID string) error {
	timeout := stopTimeoutSecs
	if err := r.cli.ContainerRestart(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("%w: container %s", ErrNotFound, containerID)
		}
		return fmt.Errorf("failed to restart container %s: %w", containerID, err)
	}
	return nil
}

// ListContainers returns all running containers.
func (r *DockerRuntime) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	summaries, err := r.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		info := ContainerInfo{
			ID:     s.ID,
			Image:  s.Image,
			Status: s.State,
		}
		if len(s.Names) > 0 {
			info.Name = strings.TrimPrefix(s.Names[0], "/")
		}
		for _, p := range s.Ports {
			if p.PublicPort == 0 {
				continue
			}
			info.Ports = append(info.Ports, PortBinding{
				ContainerPort: int(p.PrivatePort),
				HostPort:      int(p.PublicPort),
			})
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetContainer inspects one container by ID or name.
func (r *DockerRuntime) GetContainer(ctx context.Context, containerID string) (ContainerInfo, error) {
	inspect, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerInfo{}, fmt.Errorf("%w: container %s", ErrNotFound, containerID)
		}
		return ContainerInfo{}, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}

	info := ContainerInfo{
		ID:   inspect.ID,
		Name: strings.TrimPrefix(inspect.Name, "/"),
	}
	if inspect.Config != nil {
		info.Image = inspect.Config.Image
	}
	if inspect.State != nil {
		info.Status = inspect.State.Status
		info.ExitCode = inspect.State.ExitCode
		info.Error = inspect.State.Error
		if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			info.StartedAt = t
		}
	}
	if inspect.NetworkSettings != nil {
		for containerPort, bindings := range inspect.NetworkSettings.Ports {
			for _, b := range bindings {
				hostPort, err := strconv.Atoi(b.HostPort)
				if err != nil {
					continue
				}
				info.Ports = append(info.Ports, PortBinding{
					ContainerPort: containerPort.Int(),
					HostPort:      hostPort,
				})
			}
		}
	}
	return info, nil
}

// ReadLogs returns up to tail lines of the container's output.
func (r *DockerRuntime) ReadLogs(ctx context.Context, containerID string, stdout, stderr bool, tail int) (string, error) {
	reader, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: stdout,
		ShowStderr: stderr,
		Tail:       strconv.Itoa(tail),
		Timestamps: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: container %s", ErrNotFound, containerID)
		}
		return "", fmt.Errorf("failed to read logs for container %s: %w", containerID, err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			slog.Debug("Failed to close log reader", "error", closeErr)
		}
	}()

	// Non-TTY container streams are multiplexed and need demuxing.
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return "", fmt.Errorf("failed to demux logs for container %s: %w", containerID, err)
	}
	return buf.String(), nil
}

// Exec runs a shell command inside the container and returns combined output.
func (r *DockerRuntime) Exec(ctx context.Context, containerID string, cmd string) (string, error) {
	execResp, err := r.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          []string{"sh", "-c", cmd},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: container %s", ErrNotFound, containerID)
		}
		return "", fmt.Errorf("failed to create exec in container %s: %w", containerID, err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to attach exec in container %s: %w", containerID, err)
	}
	defer attach.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, attach.Reader); err != nil {
		return "", fmt.Errorf("failed to read exec output from container %s: %w", containerID, err)
	}
	return buf.String(), nil
}

type buildMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	ID          string `json:"id"`
	Progress    string `json:"progress"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Aux map[string]any `json:"aux"`
}

func (m buildMessage) errorMessage() string {
	if s := strings.TrimSpace(m.Error); s != "" {
		return s
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

func (m buildMessage) render() string {
	if m.Stream != "" {
		return strings.TrimRight(m.Stream, "\n")
	}
	if m.Status != "" {
		parts := make([]string, 0, 3)
		if id := strings.TrimSpace(m.ID); id != "" {
			parts = append(parts, id)
		}
		parts = append(parts, strings.TrimSpace(m.Status))
		if progress := strings.TrimSpace(m.Progress); progress != "" {
			parts = append(parts, progress)
		}
		return strings.Join(parts, " ")
	}
	if len(m.Aux) > 0 {
		if id, ok := m.Aux["ID"]; ok {
			return fmt.Sprintf("image id: %v", id)
		}
	}
	return ""
}
