package ports

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dess-cd/dess/docker"
)

// mockRuntime implements docker.ContainerRuntime with configurable functions
type mockRuntime struct {
	docker.ContainerRuntime

	ListContainersFunc func(ctx context.Context) ([]docker.ContainerInfo, error)
	StopAndRemoveFunc  func(ctx context.Context, containerID string) error

	stopped []string
}

func (m *mockRuntime) ListContainers(ctx context.Context) ([]docker.ContainerInfo, error) {
	if m.ListContainersFunc != nil {
		return m.ListContainersFunc(ctx)
	}
	return nil, nil
}

func (m *mockRuntime) StopAndRemove(ctx context.Context, containerID string) error {
	m.stopped = append(m.stopped, containerID)
	if m.StopAndRemoveFunc != nil {
		return m.StopAndRemoveFunc(ctx, containerID)
	}
	return nil
}

func TestAllocate_FirstFreePort(t *testing.T) {
	allocator := NewAllocator(&mockRuntime{}, 18100, 18110)

	port, err := allocator.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18100, port)
}

func TestAllocate_SkipsOSBoundPort(t *testing.T) {
	listener, err := net.Listen("tcp", "0.0.0.0:18120")
	require.NoError(t, err)
	defer listener.Close()

	allocator := NewAllocator(&mockRuntime{}, 18120, 18130)

	port, err := allocator.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18121, port)
}

func TestAllocate_SkipsUnrelatedContainerPort(t *testing.T) {
	runtime := &mockRuntime{
		ListContainersFunc: func(context.Context) ([]docker.ContainerInfo, error) {
			return []docker.ContainerInfo{{
				ID:     "abc",
				Name:   "someone-elses-app",
				Status: "running",
				Ports:  []docker.PortBinding{{ContainerPort: 3000, HostPort: 18140}},
			}}, nil
		},
	}
	allocator := NewAllocator(runtime, 18140, 18150)

	port, err := allocator.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18141, port)
	assert.Empty(t, runtime.stopped)
}

func TestAllocate_ReclaimsStaleManagedContainer(t *testing.T) {
	runtime := &mockRuntime{
		ListContainersFunc: func(context.Context) ([]docker.ContainerInfo, error) {
			return []docker.ContainerInfo{{
				ID:     "stale-id",
				Name:   ManagedContainerPrefix + "42",
				Status: "running",
				Ports:  []docker.PortBinding{{ContainerPort: 3000, HostPort: 18160}},
			}}, nil
		},
	}
	allocator := NewAllocator(runtime, 18160, 18170)

	port, err := allocator.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18160, port)
	assert.Equal(t, []string{"stale-id"}, runtime.stopped)
}

func TestAllocate_Exhausted(t *testing.T) {
	runtime := &mockRuntime{
		ListContainersFunc: func(context.Context) ([]docker.ContainerInfo, error) {
			return []docker.ContainerInfo{{
				ID:     "abc",
				Name:   "other",
				Status: "running",
				Ports:  []docker.PortBinding{{ContainerPort: 3000, HostPort: 18180}},
			}}, nil
		},
	}
	allocator := NewAllocator(runtime, 18180, 18180)

	_, err := allocator.Allocate(context.Background())
	assert.ErrorIs(t, err, ErrNoPortsAvailable)
}

func TestAllocate_SequentialCallsDiffer(t *testing.T) {
	allocator := NewAllocator(&mockRuntime{}, 18200, 18210)
	ctx := context.Background()

	first, err := allocator.Allocate(ctx)
	require.NoError(t, err)

	second, err := allocator.Allocate(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// After release the original port becomes eligible again.
	allocator.Release(first)
	third, err := allocator.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestAllocate_RuntimeUnavailablePropagates(t *testing.T) {
	runtime := docker.NewUnavailableRuntime(assert.AnError)
	allocator := NewAllocator(runtime, 18220, 18230)

	_, err := allocator.Allocate(context.Background())
	assert.ErrorIs(t, err, docker.ErrRuntimeUnavailable)
}
