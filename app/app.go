// Package app provides the main application context for Dess, managing the
// database and services.
package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/dess-cd/dess/config"
	"github.com/dess-cd/dess/db"
	"github.com/dess-cd/dess/deployer"
	"github.com/dess-cd/dess/docker"
	"github.com/dess-cd/dess/encryption"
	"github.com/dess-cd/dess/git"
	"github.com/dess-cd/dess/health"
	"github.com/dess-cd/dess/ports"
	"github.com/dess-cd/dess/repository"
	"github.com/dess-cd/dess/webhook"
	"gorm.io/gorm"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"

	database        *gorm.DB
	appConfig       *config.Config
	runtime         docker.ContainerRuntime
	gitService      *git.GitService
	deployerService *deployer.Service
	dispatcher      *webhook.Dispatcher
	deploymentRepo  repository.DeploymentRepository
	logRepo         repository.DeploymentLogRepository
	eventRepo       repository.WebhookEventRepository
)

// InitializeWithConfig initializes the app with a pre-configured Config.
func InitializeWithConfig(cfg *config.Config) error {
	var err error

	appConfig = cfg

	// Ensure required directories exist
	if err := os.MkdirAll(appConfig.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(appConfig.TmpDir, 0755); err != nil {
		return err
	}

	database, err = db.InitDB(appConfig.DatabasePath)
	if err != nil {
		return err
	}

	if err := db.AutoMigrateAll(database); err != nil {
		return err
	}

	encryptionSvc, err := encryption.NewEncryptionService(appConfig.EncryptionKey)
	if err != nil {
		return err
	}

	deploymentRepo = repository.NewDeploymentRepository(database, encryptionSvc)
	logRepo = repository.NewDeploymentLogRepository(database)
	eventRepo = repository.NewWebhookEventRepository(database)

	runtime = connectRuntime(context.Background())
	gitService = git.NewGitService(appConfig)
	allocator := ports.NewAllocator(runtime, appConfig.PortRangeStart, appConfig.PortRangeEnd)
	verifier := health.NewVerifier(
		runtime,
		retryPolicy(appConfig),
		appConfig.HealthCheckTimeout,
		appConfig.MinHealthyUptime,
	)

	deployerService = deployer.NewService(
		appConfig,
		deploymentRepo,
		logRepo,
		runtime,
		gitService,
		allocator,
		verifier,
	)
	dispatcher = webhook.NewDispatcher(deploymentRepo, eventRepo, deployerService)
	return nil
}

// connectRuntime resolves the container engine connection once at startup.
// When no strategy answers, the returned runtime fails every call fast with
// ErrRuntimeUnavailable instead of blocking the whole process.
func connectRuntime(ctx context.Context) docker.ContainerRuntime {
	strategies := docker.DefaultConnectionStrategies()
	if appConfig.DockerHost != "" {
		strategies = append(
			[]docker.ConnectionStrategy{{Name: "configured host", Host: appConfig.DockerHost}},
			strategies...,
		)
	}

	rt, err := docker.Connect(ctx, strategies)
	if err != nil {
		slog.Warn("Container engine unreachable, deployments will fail until it is available",
			"layer", "app",
			"error", err)
		return docker.NewUnavailableRuntime(err)
	}

	if !docker.CLIAvailable(ctx, appConfig.DockerCommand) {
		slog.Debug("Docker CLI probe failed, continuing with API client only",
			"layer", "app",
			"command", appConfig.DockerCommand)
	}
	return rt
}

func retryPolicy(cfg *config.Config) health.RetryPolicy {
	policy := health.DefaultRetryPolicy()
	policy.Attempts = cfg.HealthCheckAttempts
	return policy
}

func GetConfig() *config.Config {
	return appConfig
}

func GetDeployerService() *deployer.Service {
	return deployerService
}

func GetGitService() *git.GitService {
	return gitService
}

func GetRuntime() docker.ContainerRuntime {
	return runtime
}

func GetDispatcher() *webhook.Dispatcher {
	return dispatcher
}

func GetDeploymentRepository() repository.DeploymentRepository {
	return deploymentRepo
}

func GetDeploymentLogRepository() repository.DeploymentLogRepository {
	return logRepo
}

func GetWebhookEventRepository() repository.WebhookEventRepository {
	return eventRepo
}

// SetDeployerServiceForTesting allows overriding the deployer for testing purposes.
func SetDeployerServiceForTesting(service *deployer.Service) {
	deployerService = service
}

// SetRepositoriesForTesting allows overriding the repositories for testing purposes.
func SetRepositoriesForTesting(
	deployments repository.DeploymentRepository,
	logs repository.DeploymentLogRepository,
	events repository.WebhookEventRepository,
) {
	deploymentRepo = deployments
	logRepo = logs
	eventRepo = events
}
