package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DryRunRuntime is an in-memory ContainerRuntime for environments without a
// real engine. It records builds and keeps simulated containers in a map so
// the full pipeline can be exercised end to end. Deliberately explicit and
// separately constructed; it is never swapped in silently.
type DryRunRuntime struct {
	mu         sync.Mutex
	images     map[string]bool
	containers map[string]*dryRunContainer
}

type dryRunContainer struct {
	info ContainerInfo
	logs string
}

// NewDryRunRuntime creates an empty simulated runtime.
func NewDryRunRuntime() *DryRunRuntime {
	return &DryRunRuntime{
		images:     make(map[string]bool),
		containers: make(map[string]*dryRunContainer),
	}
}

func (d *DryRunRuntime) Ping(context.Context) error {
	return nil
}

func (d *DryRunRuntime) BuildImage(_ context.Context, path, tag string, onOutput func(string)) error {
	d.mu.Lock()
	d.images[tag] = true
	d.mu.Unlock()

	if onOutput != nil {
		onOutput(fmt.Sprintf("[dry-run] building %s from %s", tag, path))
		onOutput(fmt.Sprintf("[dry-run] successfully tagged %s", tag))
	}
	slog.Info("Dry-run image build",
		"layer", "docker",
		"operation", "build_image",
		"tag", tag,
	)
	return nil
}

func (d *DryRunRuntime) RunContainer(_ context.Context, opts RunOptions) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.containers {
		if c.info.Name == opts.Name && c.info.Running() {
			return "", fmt.Errorf("container name %s already in use", opts.Name)
		}
	}

	id := uuid.NewString()
	d.containers[id] = &dryRunContainer{
		info: ContainerInfo{
			ID:        id,
			Name:      opts.Name,
			Image:     opts.Image,
			Status:    "running",
			StartedAt: time.Now(),
			Ports: []PortBinding{{
				ContainerPort: opts.ContainerPort,
				HostPort:      opts.HostPort,
			}},
		},
		logs: fmt.Sprintf("[dry-run] %s started\nServer running on port %d\n", opts.Name, opts.ContainerPort),
	}
	return id, nil
}

func (d *DryRunRuntime) StopAndRemove(_ context.Context, containerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.containers[containerID]; ok {
		delete(d.containers, containerID)
		return nil
	}
	for id, c := range d.containers {
		if c.info.Name == containerID {
			delete(d.containers, id)
			return nil
		}
	}
	return nil
}

func (d *DryRunRuntime) RestartContainer(_ context.Context, containerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.containers[containerID]
	if !ok {
		return fmt.Errorf("%w: container %s", ErrNotFound, containerID)
	}
	c.info.Status = "running"
	c.info.StartedAt = time.Now()
	return nil
}

func (d *DryRunRuntime) ListContainers(context.Context) ([]ContainerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]ContainerInfo, 0, len(d.containers))
	for _, c := range d.containers {
		if c.info.Running() {
			infos = append(infos, c.info)
		}
	}
	return infos, nil
}

func (d *DryRunRuntime) GetContainer(_ context.Context, containerID string) (ContainerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.containers[containerID]; ok {
		return c.info, nil
	}
	// Names work as lookup keys too, matching the real engine.
	for _, c := range d.containers {
		if c.info.Name == containerID {
			return c.info, nil
		}
	}
	return ContainerInfo{}, fmt.Errorf("%w: container %s", ErrNotFound, containerID)
}

func (d *DryRunRuntime) ReadLogs(_ context.Context, containerID string, _, _ bool, _ int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.containers[containerID]
	if !ok {
		return "", fmt.Errorf("%w: container %s", ErrNotFound, containerID)
	}
	return c.logs, nil
}

func (d *DryRunRuntime) Exec(_ context.Context, containerID string, cmd string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.containers[containerID]; !ok {
		return "", fmt.Errorf("%w: container %s", ErrNotFound, containerID)
	}
	return fmt.Sprintf("[dry-run] exec: %s\n", cmd), nil
}
