// Package health verifies that a deployed container actually serves traffic,
// with a heuristic liveness fallback when HTTP checks stay inconclusive.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dess-cd/dess/detect"
	"github.com/dess-cd/dess/docker"
	"github.com/dess-cd/dess/domain"
)

const (
	logTailDiagnostics = 50
	logTailHeuristic   = 20
)

// diagnosticCommands is the in-container battery run when a failing
// container produced no logs at all.
var diagnosticCommands = []string{
	"ps aux",
	"ls -la /app",
	"cat /app/package.json",
	"node --version",
	"npm --version",
	"which node",
	"ls -la /app/index.js /app/app.js /app/server.js",
}

// RetryPolicy bounds the HTTP verification loop: how many attempts and how
// long to wait before each one.
type RetryPolicy struct {
	Attempts int
	Backoff  func(attempt int) time.Duration
}

// DefaultRetryPolicy waits 5s before the first attempt and 2s longer before
// each subsequent one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 6,
		Backoff: func(attempt int) time.Duration {
			return 5*time.Second + 2*time.Second*time.Duration(attempt)
		},
	}
}

// LogFunc records an operator-visible log line against the deployment.
type LogFunc func(level domain.LogLevel, message string)

// Verifier polls a deployment's URL and falls back to container-level
// liveness heuristics.
type Verifier struct {
	runtime    docker.ContainerRuntime
	httpClient *http.Client
	policy     RetryPolicy
	minUptime  time.Duration
}

func NewVerifier(runtime docker.ContainerRuntime, policy RetryPolicy, httpTimeout, minUptime time.Duration) *Verifier {
	return &Verifier{
		runtime:    runtime,
		httpClient: &http.Client{Timeout: httpTimeout},
		policy:     policy,
		minUptime:  minUptime,
	}
}

// Verify reports whether the deployment came up healthy. It never returns an
// error: every failure mode degrades to false. logf receives per-attempt
// detail for the deployment's log stream; it may be nil.
func (v *Verifier) Verify(ctx context.Context, deployment *domain.Deployment, logf LogFunc) bool {
	if logf == nil {
		logf = func(domain.LogLevel, string) {}
	}

	if deployment.DeployURL == "" {
		logf(domain.LogLevelError, "No deploy URL set, cannot verify")
		return false
	}

	for attempt := 0; attempt < v.policy.Attempts; attempt++ {
		if !sleepCtx(ctx, v.policy.Backoff(attempt)) {
			logf(domain.LogLevelWarning, "Health verification cancelled")
			return false
		}

		status, err := v.probe(ctx, deployment.DeployURL)
		if err != nil {
			logf(domain.LogLevelInfo,
				fmt.Sprintf("Health check attempt %d/%d: connection failed: %v", attempt+1, v.policy.Attempts, err))
			continue
		}

		switch status {
		case http.StatusOK:
			logf(domain.LogLevelSuccess,
				fmt.Sprintf("Health check passed on attempt %d/%d", attempt+1, v.policy.Attempts))
			return true
		case http.StatusNotFound, http.StatusBadGateway, http.StatusServiceUnavailable:
			// Server answered but the app is still warming up.
			logf(domain.LogLevelInfo,
				fmt.Sprintf("Health check attempt %d/%d: status %d, app still warming up", attempt+1, v.policy.Attempts, status))
		default:
			logf(domain.LogLevelWarning,
				fmt.Sprintf("Health check attempt %d/%d: unexpected status %d", attempt+1, v.policy.Attempts, status))
		}
	}

	logf(domain.LogLevelWarning, "HTTP health checks exhausted, collecting diagnostics")
	v.diagnose(ctx, deployment, logf)

	return v.heuristicallyHealthy(ctx, deployment, logf)
}

func (v *Verifier) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		slog.Debug("Failed to close health check response", "error", closeErr)
	}
	return resp.StatusCode, nil
}

// diagnose gathers container state and logs purely for operator visibility.
// Every failure here is logged and swallowed.
func (v *Verifier) diagnose(ctx context.Context, deployment *domain.Deployment, logf LogFunc) {
	if deployment.ContainerID == "" {
		logf(domain.LogLevelError, "No container associated, nothing to diagnose")
		return
	}

	info, err := v.runtime.GetContainer(ctx, deployment.ContainerID)
	if err != nil {
		logf(domain.LogLevelError, fmt.Sprintf("Diagnostics: container not found: %v", err))
		return
	}

	logf(domain.LogLevelInfo, fmt.Sprintf("Container status: %s", info.Status))

	stdout, stdoutErr := v.runtime.ReadLogs(ctx, deployment.ContainerID, true, false, logTailDiagnostics)
	stderr, stderrErr := v.runtime.ReadLogs(ctx, deployment.ContainerID, false, true, logTailDiagnostics)
	if stdoutErr != nil || stderrErr != nil {
		logf(domain.LogLevelError, fmt.Sprintf("Diagnostics: failed to read logs: %v %v", stdoutErr, stderrErr))
	}
	if stdout != "" {
		logf(domain.LogLevelInfo, "Container stdout:\n"+stdout)
	}
	if stderr != "" {
		logf(domain.LogLevelInfo, "Container stderr:\n"+stderr)
	}

	if stdout == "" && stderr == "" {
		logf(domain.LogLevelWarning, "Container produced no logs, running in-container diagnostics")
		v.execDiagnostics(ctx, deployment.ContainerID, logf)
	}

	if info.Status == "exited" || info.Status == "dead" {
		logf(domain.LogLevelError, fmt.Sprintf("Container exited with code %d", info.ExitCode))
		if info.Error != "" {
			logf(domain.LogLevelError, fmt.Sprintf("Container error: %s", info.Error))
		}
	}
}

func (v *Verifier) execDiagnostics(ctx context.Context, containerID string, logf LogFunc) {
	for _, cmd := range diagnosticCommands {
		output, err := v.runtime.Exec(ctx, containerID, cmd)
		if err != nil {
			logf(domain.LogLevelError, fmt.Sprintf("Diagnostic [%s] failed: %v", cmd, err))
			continue
		}
		if strings.TrimSpace(output) == "" {
			logf(domain.LogLevelWarning, fmt.Sprintf("Diagnostic [%s]: no output", cmd))
			continue
		}
		logf(domain.LogLevelInfo, fmt.Sprintf("Diagnostic [%s]:\n%s", cmd, output))
	}
}

// heuristicallyHealthy declares a deployment alive despite failed HTTP checks
// when the container is running and either logged a stack-specific startup
// keyword or has stayed up past the minimum uptime threshold.
func (v *Verifier) heuristicallyHealthy(ctx context.Context, deployment *domain.Deployment, logf LogFunc) bool {
	if deployment.ContainerID == "" {
		return false
	}

	info, err := v.runtime.GetContainer(ctx, deployment.ContainerID)
	if err != nil {
		logf(domain.LogLevelError, fmt.Sprintf("Liveness fallback: container lookup failed: %v", err))
		return false
	}
	if !info.Running() {
		logf(domain.LogLevelError, fmt.Sprintf("Liveness fallback: container is %s, not running", info.Status))
		return false
	}

	logs, err := v.runtime.ReadLogs(ctx, deployment.ContainerID, true, true, logTailHeuristic)
	if err != nil {
		logf(domain.LogLevelWarning, fmt.Sprintf("Liveness fallback: failed to read logs: %v", err))
		logs = ""
	}

	for _, keyword := range detect.StartupKeywords(deployment.ProjectType) {
		if strings.Contains(logs, keyword) {
			logf(domain.LogLevelInfo, fmt.Sprintf("Liveness fallback: startup indicator found in logs: %q", keyword))
			return true
		}
	}

	if uptime := info.Uptime(time.Now()); uptime > v.minUptime {
		logf(domain.LogLevelInfo,
			fmt.Sprintf("Liveness fallback: container running stable for %.1fs", uptime.Seconds()))
		return true
	}

	logf(domain.LogLevelError, "Liveness fallback: no startup indicators and uptime too short")
	return false
}

// sleepCtx waits for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
