// Package deployer drives the deployment state machine: clone, classify,
// build, run, verify, persisting every transition.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dess-cd/dess/config"
	"github.com/dess-cd/dess/detect"
	"github.com/dess-cd/dess/docker"
	"github.com/dess-cd/dess/domain"
	"github.com/dess-cd/dess/health"
	"github.com/dess-cd/dess/ports"
	"github.com/dess-cd/dess/repository"
)

// ErrDeployInProgress indicates a deploy pipeline for the same deployment ID
// is already executing.
var ErrDeployInProgress = errors.New("deployment already in progress")

// GitCloner is the clone surface the pipeline needs from the git layer.
type GitCloner interface {
	CloneWithFallback(ctx context.Context, repoURL, branch, workingDir string) (string, error)
	LatestCommit(workingDir string) (string, error)
}

// HealthChecker reports whether a deployed container came up healthy.
type HealthChecker interface {
	Verify(ctx context.Context, deployment *domain.Deployment, logf health.LogFunc) bool
}

// Service orchestrates deployments end to end.
type Service struct {
	config      *config.Config
	deployments repository.DeploymentRepository
	logs        repository.DeploymentLogRepository
	runtime     docker.ContainerRuntime
	git         GitCloner
	allocator   *ports.Allocator
	verifier    HealthChecker
	guard       *deployGuard
}

func NewService(
	cfg *config.Config,
	deployments repository.DeploymentRepository,
	logs repository.DeploymentLogRepository,
	runtime docker.ContainerRuntime,
	gitService GitCloner,
	allocator *ports.Allocator,
	verifier HealthChecker,
) *Service {
	return &Service{
		config:      cfg,
		deployments: deployments,
		logs:        logs,
		runtime:     runtime,
		git:         gitService,
		allocator:   allocator,
		verifier:    verifier,
		guard:       newDeployGuard(),
	}
}

// Deploy runs the full pipeline for one deployment. Exactly one pipeline per
// deployment ID may run at a time; a concurrent call returns
// ErrDeployInProgress. Every fatal error is recorded on the deployment and
// converted to status FAILED before it is returned.
func (s *Service) Deploy(ctx context.Context, deploymentID uuid.UUID) error {
	if !s.guard.acquire(deploymentID) {
		return fmt.Errorf("%w: %s", ErrDeployInProgress, deploymentID)
	}
	defer s.guard.release(deploymentID)

	deploysInFlight.Inc()
	start := time.Now()
	defer func() {
		deploysInFlight.Dec()
		deployDuration.Observe(time.Since(start).Seconds())
	}()

	deployment, err := s.deployments.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to load deployment %s: %w", deploymentID, err)
	}

	err = s.runPipeline(ctx, deployment)
	if err != nil {
		deploysTotal.WithLabelValues("failed").Inc()
		return err
	}
	deploysTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *Service) runPipeline(ctx context.Context, deployment *domain.Deployment) error {
	slog.Info("Starting deploy pipeline",
		"layer", "deployer",
		"operation", "deploy",
		"deployment_id", deployment.ID,
		"deployment_name", deployment.Name,
	)

	// A redeploy of a FAILED/STOPPED/RUNNING deployment starts from a clean
	// slate. The previous container ID is kept aside so the deploy step can
	// still clean it up.
	previousContainerID := deployment.ContainerID
	deployment.ResetArtifacts()

	if err := os.MkdirAll(s.config.TmpDir, 0o755); err != nil {
		return s.fail(deployment, fmt.Errorf("failed to create tmp dir: %w", err))
	}
	scratchDir, err := os.MkdirTemp(s.config.TmpDir, "deploy-"+deployment.ID.String()+"-")
	if err != nil {
		return s.fail(deployment, fmt.Errorf("failed to create clone dir: %w", err))
	}
	// Cleanup is unconditional; it runs whichever step fails.
	defer func() {
		if removeErr := os.RemoveAll(scratchDir); removeErr != nil {
			slog.Warn("Failed to remove clone dir",
				"layer", "deployer",
				"deployment_id", deployment.ID,
				"dir", scratchDir,
				"error", removeErr,
			)
		}
	}()
	workingDir := filepath.Join(scratchDir, "repo")

	if err := s.clone(ctx, deployment, workingDir); err != nil {
		return s.fail(deployment, err)
	}
	if err := s.classify(deployment, workingDir); err != nil {
		return s.fail(deployment, err)
	}
	if err := s.ensureDockerfile(deployment, workingDir); err != nil {
		return s.fail(deployment, err)
	}
	if err := s.build(ctx, deployment, workingDir); err != nil {
		return s.fail(deployment, err)
	}
	hostPort, err := s.runContainer(ctx, deployment, previousContainerID)
	if err != nil {
		if hostPort != 0 {
			s.allocator.Release(hostPort)
		}
		return s.fail(deployment, err)
	}

	if healthy := s.verify(ctx, deployment); !healthy {
		return s.fail(deployment, fmt.Errorf("deployment did not become healthy at %s", deployment.DeployURL))
	}

	now := time.Now()
	deployment.LastDeployedAt = &now
	if err := s.setStatus(deployment, domain.DeploymentStatusRunning); err != nil {
		return err
	}
	s.record(deployment, domain.LogLevelSuccess,
		fmt.Sprintf("Deployment is running at %s", deployment.DeployURL))

	slog.Info("Deploy pipeline finished",
		"layer", "deployer",
		"operation", "deploy",
		"deployment_id", deployment.ID,
		"deploy_url", deployment.DeployURL,
	)
	return nil
}

func (s *Service) clone(ctx context.Context, deployment *domain.Deployment, workingDir string) error {
	if err := s.setStatus(deployment, domain.DeploymentStatusCloning); err != nil {
		return err
	}
	s.record(deployment, domain.LogLevelInfo,
		fmt.Sprintf("Cloning %s (branch %s)", deployment.RepoURL, deployment.Branch))

	usedBranch, err := s.git.CloneWithFallback(ctx, deployment.CloneURL(), deployment.Branch, workingDir)
	if err != nil {
		return err
	}
	if usedBranch != deployment.Branch {
		s.record(deployment, domain.LogLevelWarning,
			fmt.Sprintf("Requested branch %q unavailable, cloned %q instead",
				deployment.Branch, branchLabel(usedBranch)))
	} else {
		s.record(deployment, domain.LogLevelInfo, "Repository cloned")
	}

	commit, err := s.git.LatestCommit(workingDir)
	if err != nil {
		slog.Debug("Failed to resolve cloned commit",
			"layer", "deployer",
			"deployment_id", deployment.ID,
			"error", err,
		)
		return nil
	}
	s.record(deployment, domain.LogLevelInfo,
		fmt.Sprintf("Checked out commit %s", shortID(commit)))
	return nil
}

func (s *Service) classify(deployment *domain.Deployment, workingDir string) error {
	if err := s.setStatus(deployment, domain.DeploymentStatusAnalyzing); err != nil {
		return err
	}

	projectType := detect.Classify(workingDir)
	deployment.ProjectType = projectType
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist project type: %w", err)
	}

	s.record(deployment, domain.LogLevelInfo,
		fmt.Sprintf("Detected project type: %s", projectType))
	return nil
}

// ensureDockerfile writes a generated Dockerfile into the clone when the
// repository doesn't ship its own. An existing descriptor always wins.
func (s *Service) ensureDockerfile(deployment *domain.Deployment, workingDir string) error {
	dockerfilePath := deployment.DockerfilePath
	if dockerfilePath == "" {
		dockerfilePath = domain.DefaultDockerfilePath
	}
	fullPath := filepath.Join(workingDir, dockerfilePath)

	if _, err := os.Stat(fullPath); err == nil {
		s.record(deployment, domain.LogLevelInfo, "Using Dockerfile from repository")
		return nil
	}

	content := detect.GenerateDockerfile(deployment.ProjectType)
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write generated Dockerfile: %w", err)
	}

	s.record(deployment, domain.LogLevelInfo,
		fmt.Sprintf("Generated Dockerfile for %s (%d bytes)", deployment.ProjectType, len(content)))
	return nil
}

func (s *Service) build(ctx context.Context, deployment *domain.Deployment, workingDir string) error {
	if err := s.setStatus(deployment, domain.DeploymentStatusBuilding); err != nil {
		return err
	}

	imageTag := deployment.ImageTag()
	s.record(deployment, domain.LogLevelInfo, fmt.Sprintf("Building image %s", imageTag))

	buildErr := s.runtime.BuildImage(ctx, workingDir, imageTag, func(line string) {
		deployment.AppendBuildLog(line)
	})

	// Persist whatever output the build produced, success or not.
	if err := s.deployments.Update(deployment); err != nil {
		slog.Warn("Failed to persist build log",
			"layer", "deployer",
			"deployment_id", deployment.ID,
			"error", err,
		)
	}

	if buildErr != nil {
		return fmt.Errorf("image build failed: %w", buildErr)
	}

	deployment.ImageName = imageTag
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist image name: %w", err)
	}
	s.record(deployment, domain.LogLevelInfo, "Image built")
	return nil
}

// runContainer performs the deploy step. Returns the allocated host port
// (zero if allocation never happened) so the caller can release it on error.
func (s *Service) runContainer(ctx context.Context, deployment *domain.Deployment, previousContainerID string) (int, error) {
	if err := s.setStatus(deployment, domain.DeploymentStatusDeploying); err != nil {
		return 0, err
	}

	s.cleanupExistingContainer(ctx, deployment, previousContainerID)

	internalPort := detect.InternalPort(deployment.ProjectType, deployment.PortValue())

	hostPort, err := s.allocator.Allocate(ctx)
	if err != nil {
		return 0, fmt.Errorf("port allocation failed: %w", err)
	}

	deployment.Port = &hostPort
	deployment.DeployURL = fmt.Sprintf("%s:%d", s.config.BaseURL, hostPort)
	if err := s.deployments.Update(deployment); err != nil {
		return hostPort, fmt.Errorf("failed to persist allocated port: %w", err)
	}
	s.record(deployment, domain.LogLevelInfo,
		fmt.Sprintf("Deploying on port %d (container port %d)", hostPort, internalPort))

	containerID, err := s.runtime.RunContainer(ctx, docker.RunOptions{
		Image:         deployment.ImageName,
		Name:          deployment.ContainerName(),
		ContainerPort: internalPort,
		HostPort:      hostPort,
		Env:           detect.RuntimeEnv(deployment.ProjectType, deployment.EnvironmentVars, internalPort),
		RestartPolicy: "unless-stopped",
	})
	if err != nil {
		return hostPort, fmt.Errorf("failed to run container: %w", err)
	}

	deployment.ContainerID = containerID
	if err := s.deployments.Update(deployment); err != nil {
		return hostPort, fmt.Errorf("failed to persist container id: %w", err)
	}
	s.record(deployment, domain.LogLevelInfo,
		fmt.Sprintf("Container started: %s", shortID(containerID)))
	return hostPort, nil
}

// cleanupExistingContainer removes containers left over from a previous
// attempt, both by recorded ID and by deterministic name. Failures are
// logged and swallowed; the run step surfaces any real conflict.
func (s *Service) cleanupExistingContainer(ctx context.Context, deployment *domain.Deployment, previousContainerID string) {
	targets := []string{}
	if previousContainerID != "" {
		targets = append(targets, previousContainerID)
	}
	targets = append(targets, deployment.ContainerName())

	for _, target := range targets {
		if err := s.runtime.StopAndRemove(ctx, target); err != nil {
			s.record(deployment, domain.LogLevelWarning,
				fmt.Sprintf("Failed to clean up previous container %s: %v", shortID(target), err))
		}
	}
}

func (s *Service) verify(ctx context.Context, deployment *domain.Deployment) bool {
	s.record(deployment, domain.LogLevelInfo, "Verifying deployment health")
	return s.verifier.Verify(ctx, deployment, func(level domain.LogLevel, message string) {
		s.record(deployment, level, message)
	})
}

// Stop stops and removes the deployment's container and marks it STOPPED.
// A container that is already gone counts as success.
func (s *Service) Stop(ctx context.Context, deploymentID uuid.UUID) error {
	deployment, err := s.deployments.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to load deployment %s: %w", deploymentID, err)
	}

	if deployment.ContainerID != "" {
		if err := s.runtime.StopAndRemove(ctx, deployment.ContainerID); err != nil {
			if !errors.Is(err, docker.ErrNotFound) {
				return fmt.Errorf("failed to stop container: %w", err)
			}
			s.record(deployment, domain.LogLevelInfo, "Container was already gone")
		}
	}

	if port := deployment.PortValue(); port != 0 {
		s.allocator.Release(port)
	}

	deployment.ContainerID = ""
	if err := s.setStatus(deployment, domain.DeploymentStatusStopped); err != nil {
		return err
	}
	s.record(deployment, domain.LogLevelInfo, "Deployment stopped")
	return nil
}

// Restart issues an in-place container restart without rerunning the
// pipeline. Reports false when no container is associated.
func (s *Service) Restart(ctx context.Context, deploymentID uuid.UUID) (bool, error) {
	deployment, err := s.deployments.FindByID(deploymentID)
	if err != nil {
		return false, fmt.Errorf("failed to load deployment %s: %w", deploymentID, err)
	}

	if deployment.ContainerID == "" {
		s.record(deployment, domain.LogLevelWarning, "Restart requested but no container is associated")
		return false, nil
	}

	if err := s.runtime.RestartContainer(ctx, deployment.ContainerID); err != nil {
		if errors.Is(err, docker.ErrNotFound) {
			s.record(deployment, domain.LogLevelWarning, "Restart requested but container no longer exists")
			return false, nil
		}
		return false, fmt.Errorf("failed to restart container: %w", err)
	}

	s.record(deployment, domain.LogLevelInfo, "Container restarted")
	return true, nil
}

// fail records err on the deployment and transitions it to FAILED. The
// original error is returned for the caller.
func (s *Service) fail(deployment *domain.Deployment, err error) error {
	deployment.AppendErrorLog(err.Error())
	s.record(deployment, domain.LogLevelError, err.Error())

	deployment.Status = domain.DeploymentStatusFailed
	if updateErr := s.deployments.Update(deployment); updateErr != nil {
		slog.Error("Failed to persist FAILED status",
			"layer", "deployer",
			"deployment_id", deployment.ID,
			"error", updateErr,
		)
	}

	slog.Error("Deploy pipeline failed",
		"layer", "deployer",
		"operation", "deploy",
		"deployment_id", deployment.ID,
		"error", err,
	)
	return err
}

func (s *Service) setStatus(deployment *domain.Deployment, status domain.DeploymentStatus) error {
	deployment.Status = status
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist status %s: %w", status, err)
	}
	slog.Debug("Deployment status changed",
		"layer", "deployer",
		"deployment_id", deployment.ID,
		"status", status.String(),
	)
	return nil
}

// record appends an operator-visible log entry, mirroring it to slog. Log
// persistence failures never interrupt the pipeline.
func (s *Service) record(deployment *domain.Deployment, level domain.LogLevel, message string) {
	entry := domain.NewDeploymentLogEntry(deployment.ID, level, message)
	if err := s.logs.Append(&entry); err != nil {
		slog.Warn("Failed to persist deployment log entry",
			"layer", "deployer",
			"deployment_id", deployment.ID,
			"error", err,
		)
	}
}

func branchLabel(branch string) string {
	if branch == "" {
		return "repository default"
	}
	return branch
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
