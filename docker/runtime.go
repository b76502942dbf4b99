// Package docker provides the container runtime abstraction used by the
// deployment pipeline, backed by the Docker Engine API.
package docker

import (
	"context"
	"time"
)

// PortBinding maps one container port to one host port.
type PortBinding struct {
	ContainerPort int
	HostPort      int
}

// ContainerInfo captures the runtime details the pipeline cares about.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    string // "running", "exited", "dead", ...
	StartedAt time.Time
	ExitCode  int
	Error     string
	Ports     []PortBinding
}

// Running reports whether the container is currently running.
func (c ContainerInfo) Running() bool {
	return c.Status == "running"
}

// Uptime returns how long the container has been running.
func (c ContainerInfo) Uptime(now time.Time) time.Duration {
	if c.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(c.StartedAt)
}

// RunOptions describes a container to create and start.
type RunOptions struct {
	Image         string
	Name          string
	ContainerPort int
	HostPort      int
	Env           map[string]string
	RestartPolicy string // e.g. "unless-stopped"
}

// ContainerRuntime abstracts the container engine operations the deployment
// pipeline needs. Implementations must be safe for concurrent use.
type ContainerRuntime interface {
	// Ping checks engine connectivity.
	Ping(ctx context.Context) error

	// BuildImage builds an image from the directory at path, tagging it with
	// tag. Build output lines are streamed to onOutput as they arrive. A
	// failure classified as ErrCacheStale is retried once internally with
	// caching disabled and a forced base-image pull.
	BuildImage(ctx context.Context, path, tag string, onOutput func(string)) error

	// RunContainer creates and starts a detached container, returning its ID.
	RunContainer(ctx context.Context, opts RunOptions) (string, error)

	// StopAndRemove stops and removes a container by ID or name. A container
	// that no longer exists is not an error.
	StopAndRemove(ctx context.Context, containerID string) error

	// RestartContainer restarts a running container in place.
	RestartContainer(ctx context.Context, containerID string) error

	// ListContainers returns all running containers.
	ListContainers(ctx context.Context) ([]ContainerInfo, error)

	// GetContainer inspects one container by ID or name. Returns ErrNotFound
	// if it does not exist.
	GetContainer(ctx context.Context, containerID string) (ContainerInfo, error)

	// ReadLogs returns up to tail lines of the container's output streams.
	ReadLogs(ctx context.Context, containerID string, stdout, stderr bool, tail int) (string, error)

	// Exec runs a shell command inside the container and returns its combined
	// output.
	Exec(ctx context.Context, containerID string, cmd string) (string, error)
}
