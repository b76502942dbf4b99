// Package ports allocates host ports for deployed containers.
package ports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/dess-cd/dess/docker"
)

// ErrNoPortsAvailable indicates the whole allocation range is exhausted.
var ErrNoPortsAvailable = errors.New("no ports available for deployment")

// ManagedContainerPrefix marks containers created by this service; a stale
// one holding a candidate port may be reclaimed.
const ManagedContainerPrefix = "dess-"

// Allocator scans a fixed port range for a port free both at the OS level
// and among running containers. Ports handed out stay reserved until
// Release is called, so concurrent pipelines cannot race on the gap between
// allocation and container start.
type Allocator struct {
	runtime docker.ContainerRuntime
	start   int
	end     int

	mu       sync.Mutex
	reserved map[int]bool
}

func NewAllocator(runtime docker.ContainerRuntime, start, end int) *Allocator {
	return &Allocator{
		runtime:  runtime,
		start:    start,
		end:      end,
		reserved: make(map[int]bool),
	}
}

// Allocate returns the first port in the range that passes both the OS bind
// check and the container cross-check, and reserves it.
func (a *Allocator) Allocate(ctx context.Context) (int, error) {
	for port := a.start; port <= a.end; port++ {
		a.mu.Lock()
		taken := a.reserved[port]
		a.mu.Unlock()
		if taken {
			continue
		}
		if !bindable(port) {
			continue
		}
		free, err := a.freeAmongContainers(ctx, port)
		if err != nil {
			return 0, err
		}
		if free {
			a.mu.Lock()
			a.reserved[port] = true
			a.mu.Unlock()
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: range %d-%d exhausted", ErrNoPortsAvailable, a.start, a.end)
}

// Release returns a reserved port to the pool. Safe to call for ports that
// were never reserved.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	delete(a.reserved, port)
	a.mu.Unlock()
}

// bindable checks that a listener can be opened on both the loopback and
// wildcard addresses. Containers publish on 0.0.0.0 while health checks hit
// localhost, so both must be free.
func bindable(port int) bool {
	for _, host := range []string{"localhost", "0.0.0.0"} {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return false
		}
		if closeErr := l.Close(); closeErr != nil {
			slog.Debug("Failed to close probe listener", "port", port, "error", closeErr)
		}
	}
	return true
}

// freeAmongContainers cross-checks running containers for an existing binding
// of port. A stale managed container holding it is stopped and removed,
// freeing the port; an unrelated container makes it unavailable.
func (a *Allocator) freeAmongContainers(ctx context.Context, port int) (bool, error) {
	containers, err := a.runtime.ListContainers(ctx)
	if err != nil {
		if errors.Is(err, docker.ErrRuntimeUnavailable) {
			return false, err
		}
		// Can't verify, assume the port is taken.
		slog.Warn("Failed to cross-check containers for port",
			"layer", "ports",
			"operation", "allocate",
			"port", port,
			"error", err,
		)
		return false, nil
	}

	for _, c := range containers {
		if !holdsPort(c, port) {
			continue
		}
		if strings.HasPrefix(c.Name, ManagedContainerPrefix) {
			slog.Info("Reclaiming stale managed container holding port",
				"layer", "ports",
				"operation", "allocate",
				"port", port,
				"container_name", c.Name,
			)
			if err := a.runtime.StopAndRemove(ctx, c.ID); err != nil {
				slog.Warn("Failed to reclaim stale container",
					"layer", "ports",
					"operation", "allocate",
					"container_name", c.Name,
					"error", err,
				)
				return false, nil
			}
			return true, nil
		}
		return false, nil
	}
	return true, nil
}

func holdsPort(c docker.ContainerInfo, port int) bool {
	for _, b := range c.Ports {
		if b.HostPort == port {
			return true
		}
	}
	return false
}
