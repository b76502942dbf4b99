package docker

import (
	"errors"
	"strings"
)

var (
	// ErrRuntimeUnavailable indicates no container engine connection could be
	// established; operations fail fast instead of crashing.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrDaemonUnreachable indicates the engine stopped responding after a
	// connection had been established.
	ErrDaemonUnreachable = errors.New("docker daemon unreachable")

	// ErrCacheStale indicates an image build failed due to a stale build
	// cache or snapshot; one retry with caching disabled is warranted.
	ErrCacheStale = errors.New("stale build cache")

	// ErrNotFound indicates the requested container or image does not exist.
	ErrNotFound = errors.New("docker: resource not found")
)

// classifyBuildError wraps engine build failures into the typed taxonomy so
// retry logic can dispatch on error identity instead of message content.
func classifyBuildError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "snapshot") ||
		strings.Contains(lower, "failed to get state for index") ||
		strings.Contains(lower, "layer does not exist"):
		return wrapf(ErrCacheStale, msg)
	case strings.Contains(lower, "http+docker") ||
		strings.Contains(lower, "cannot connect to the docker daemon"):
		return wrapf(ErrDaemonUnreachable, msg)
	default:
		return errors.New(msg)
	}
}

func wrapf(sentinel error, msg string) error {
	return &classifiedError{sentinel: sentinel, msg: msg}
}

type classifiedError struct {
	sentinel error
	msg      string
}

func (e *classifiedError) Error() string {
	return e.sentinel.Error() + ": " + e.msg
}

func (e *classifiedError) Unwrap() error {
	return e.sentinel
}
