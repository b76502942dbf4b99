package docker

import (
	"context"
	"fmt"
)

// unavailableRuntime is the degraded stand-in used when no connection
// strategy succeeded at startup. Every operation fails fast with a clear
// error instead of crashing, so the rest of the service can keep running.
type unavailableRuntime struct {
	reason error
}

// NewUnavailableRuntime wraps the connection failure so later operations can
// report why the engine is missing.
func NewUnavailableRuntime(reason error) ContainerRuntime {
	return &unavailableRuntime{reason: reason}
}

func (u *unavailableRuntime) fail(op string) error {
	return fmt.Errorf("%w: %s refused: %v", ErrRuntimeUnavailable, op, u.reason)
}

func (u *unavailableRuntime) Ping(context.Context) error {
	return u.fail("ping")
}

func (u *unavailableRuntime) BuildImage(_ context.Context, _, _ string, _ func(string)) error {
	return u.fail("build image")
}

func (u *unavailableRuntime) RunContainer(context.Context, RunOptions) (string, error) {
	return "", u.fail("run container")
}

func (u *unavailableRuntime) StopAndRemove(context.Context, string) error {
	return u.fail("stop container")
}

func (u *unavailableRuntime) RestartContainer(context.Context, string) error {
	return u.fail("restart container")
}

func (u *unavailableRuntime) ListContainers(context.Context) ([]ContainerInfo, error) {
	return nil, u.fail("list containers")
}

func (u *unavailableRuntime) GetContainer(context.Context, string) (ContainerInfo, error) {
	return ContainerInfo{}, u.fail("inspect container")
}

func (u *unavailableRuntime) ReadLogs(_ context.Context, _ string, _, _ bool, _ int) (string, error) {
	return "", u.fail("read logs")
}

func (u *unavailableRuntime) Exec(context.Context, string, string) (string, error) {
	return "", u.fail("exec")
}
