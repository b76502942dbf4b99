package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dess-cd/dess/config"
	"github.com/dess-cd/dess/docker"
	"github.com/dess-cd/dess/domain"
	"github.com/dess-cd/dess/health"
	"github.com/dess-cd/dess/ports"
)

// fakeDeployments is an in-memory DeploymentRepository that records the
// status history of every update.
type fakeDeployments struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.Deployment
	statuses []domain.DeploymentStatus
}

func newFakeDeployments() *fakeDeployments {
	return &fakeDeployments{items: make(map[uuid.UUID]*domain.Deployment)}
}

func (f *fakeDeployments) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s not found", id)
	}
	return d, nil
}

func (f *fakeDeployments) FindByName(name string) (*domain.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.items {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("deployment %q not found", name)
}

func (f *fakeDeployments) Create(d *domain.Deployment) (*domain.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[d.ID] = d
	return d, nil
}

func (f *fakeDeployments) Update(d *domain.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[d.ID] = d
	f.statuses = append(f.statuses, d.Status)
	return nil
}

func (f *fakeDeployments) List() ([]*domain.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Deployment, 0, len(f.items))
	for _, d := range f.items {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDeployments) Delete(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeDeployments) statusHistory() []domain.DeploymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DeploymentStatus(nil), f.statuses...)
}

// fakeLogs is an in-memory DeploymentLogRepository.
type fakeLogs struct {
	mu      sync.Mutex
	entries []domain.DeploymentLogEntry
}

func (f *fakeLogs) Append(entry *domain.DeploymentLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogs) ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.DeploymentLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.DeploymentLogEntry, 0, len(f.entries))
	for i := range f.entries {
		if f.entries[i].DeploymentID == deploymentID {
			out = append(out, &f.entries[i])
		}
	}
	return out, nil
}

// fakeGit materializes a fixture repository instead of cloning.
type fakeGit struct {
	files   map[string]string
	commit  string
	err     error
	started chan struct{} // closed when a clone begins, if set
	block   chan struct{} // clone waits on this, if set
}

func (f *fakeGit) CloneWithFallback(_ context.Context, _, branch, workingDir string) (string, error) {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return "", err
	}
	for name, content := range f.files {
		if err := os.WriteFile(filepath.Join(workingDir, name), []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return branch, nil
}

func (f *fakeGit) LatestCommit(string) (string, error) {
	if f.commit == "" {
		return "", errors.New("reference not found")
	}
	return f.commit, nil
}

// staticVerifier short-circuits health checking.
type staticVerifier struct{ healthy bool }

func (v staticVerifier) Verify(context.Context, *domain.Deployment, health.LogFunc) bool {
	return v.healthy
}

type testHarness struct {
	service     *Service
	deployments *fakeDeployments
	logs        *fakeLogs
	runtime     *docker.DryRunRuntime
	deployment  *domain.Deployment
}

func newHarness(t *testing.T, gitService GitCloner, verifier HealthChecker) *testHarness {
	t.Helper()

	cfg := &config.Config{
		TmpDir:         t.TempDir(),
		BaseURL:        "http://localhost",
		PortRangeStart: 18300,
		PortRangeEnd:   18310,
	}
	runtime := docker.NewDryRunRuntime()
	deployments := newFakeDeployments()
	logs := &fakeLogs{}

	d := domain.NewDeployment("demo-app", "https://example.com/demo/app")
	_, err := deployments.Create(&d)
	require.NoError(t, err)

	service := NewService(cfg, deployments, logs, runtime, gitService,
		ports.NewAllocator(runtime, cfg.PortRangeStart, cfg.PortRangeEnd), verifier)

	return &testHarness{
		service:     service,
		deployments: deployments,
		logs:        logs,
		runtime:     runtime,
		deployment:  &d,
	}
}

func nodeFixture() *fakeGit {
	return &fakeGit{
		commit: "0123456789abcdef0123456789abcdef01234567",
		files: map[string]string{
			"package.json": `{"scripts":{"start":"node server.js"},"dependencies":{"express":"^4.18.0"}}`,
			"server.js":    "require('express')().listen(process.env.PORT)",
		},
	}
}

func TestDeploy_EndToEnd(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})

	require.NoError(t, h.service.Deploy(context.Background(), h.deployment.ID))

	d, err := h.deployments.FindByID(h.deployment.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DeploymentStatusRunning, d.Status)
	assert.Equal(t, domain.ProjectTypeNode, d.ProjectType)
	require.NotNil(t, d.Port)
	assert.GreaterOrEqual(t, *d.Port, 18300)
	assert.LessOrEqual(t, *d.Port, 18310)
	assert.NotEmpty(t, d.ContainerID)
	assert.NotEmpty(t, d.BuildLog)
	assert.Equal(t, d.ImageTag(), d.ImageName)
	assert.Equal(t, fmt.Sprintf("http://localhost:%d", *d.Port), d.DeployURL)
	require.NotNil(t, d.LastDeployedAt)
	assert.WithinDuration(t, time.Now(), *d.LastDeployedAt, time.Minute)

	// The container actually exists in the runtime under its managed name.
	info, err := h.runtime.GetContainer(context.Background(), d.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, d.ContainerName(), info.Name)
}

func TestDeploy_RecordsCheckedOutCommit(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})

	require.NoError(t, h.service.Deploy(context.Background(), h.deployment.ID))

	entries, err := h.logs.ListByDeploymentID(h.deployment.ID)
	require.NoError(t, err)
	var sawCommit bool
	for _, e := range entries {
		if e.Message == "Checked out commit 0123456789ab" {
			sawCommit = true
		}
	}
	assert.True(t, sawCommit)
}

func TestDeploy_CommitResolutionFailureIsNotFatal(t *testing.T) {
	gitService := nodeFixture()
	gitService.commit = ""
	h := newHarness(t, gitService, staticVerifier{healthy: true})

	require.NoError(t, h.service.Deploy(context.Background(), h.deployment.ID))

	d, _ := h.deployments.FindByID(h.deployment.ID)
	assert.Equal(t, domain.DeploymentStatusRunning, d.Status)
}

func TestDeploy_StatusProgression(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})

	require.NoError(t, h.service.Deploy(context.Background(), h.deployment.ID))

	history := h.deployments.statusHistory()
	expected := []domain.DeploymentStatus{
		domain.DeploymentStatusCloning,
		domain.DeploymentStatusAnalyzing,
		domain.DeploymentStatusBuilding,
		domain.DeploymentStatusDeploying,
		domain.DeploymentStatusRunning,
	}

	var observed []domain.DeploymentStatus
	for _, s := range history {
		if len(observed) == 0 || observed[len(observed)-1] != s {
			observed = append(observed, s)
		}
	}
	assert.Equal(t, expected, observed)
}

func TestDeploy_CloneFailureMarksFailed(t *testing.T) {
	h := newHarness(t, &fakeGit{err: errors.New("all attempts failed")}, staticVerifier{healthy: true})

	err := h.service.Deploy(context.Background(), h.deployment.ID)
	require.Error(t, err)

	d, _ := h.deployments.FindByID(h.deployment.ID)
	assert.Equal(t, domain.DeploymentStatusFailed, d.Status)
	assert.Contains(t, d.ErrorLog, "all attempts failed")
}

func TestDeploy_UnhealthyMarksFailed(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: false})

	err := h.service.Deploy(context.Background(), h.deployment.ID)
	require.Error(t, err)

	d, _ := h.deployments.FindByID(h.deployment.ID)
	assert.Equal(t, domain.DeploymentStatusFailed, d.Status)
}

func TestDeploy_ExistingDockerfileWins(t *testing.T) {
	gitService := &fakeGit{files: map[string]string{
		"Dockerfile": "FROM nginx:alpine\n",
		"index.html": "<html></html>",
	}}
	h := newHarness(t, gitService, staticVerifier{healthy: true})

	require.NoError(t, h.service.Deploy(context.Background(), h.deployment.ID))

	d, _ := h.deployments.FindByID(h.deployment.ID)
	assert.Equal(t, domain.ProjectTypeDocker, d.ProjectType)

	entries, err := h.logs.ListByDeploymentID(d.ID)
	require.NoError(t, err)
	var sawRepoDockerfile bool
	for _, e := range entries {
		if e.Message == "Using Dockerfile from repository" {
			sawRepoDockerfile = true
		}
	}
	assert.True(t, sawRepoDockerfile)
}

func TestDeploy_ConcurrentSameIDRejected(t *testing.T) {
	gitService := nodeFixture()
	gitService.started = make(chan struct{})
	gitService.block = make(chan struct{})
	h := newHarness(t, gitService, staticVerifier{healthy: true})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.service.Deploy(context.Background(), h.deployment.ID)
	}()

	<-gitService.started
	err := h.service.Deploy(context.Background(), h.deployment.ID)
	assert.ErrorIs(t, err, ErrDeployInProgress)

	close(gitService.block)
	require.NoError(t, <-firstDone)
}

func TestDeploy_CleanupRemovesCloneDir(t *testing.T) {
	h := newHarness(t, &fakeGit{err: errors.New("clone broke")}, staticVerifier{healthy: true})

	_ = h.service.Deploy(context.Background(), h.deployment.ID)

	entries, err := os.ReadDir(h.service.config.TmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories must be removed on failure too")
}

func TestRedeploy_ResetsArtifacts(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})
	ctx := context.Background()

	require.NoError(t, h.service.Deploy(ctx, h.deployment.ID))
	first, _ := h.deployments.FindByID(h.deployment.ID)
	firstContainer := first.ContainerID

	require.NoError(t, h.service.Deploy(ctx, h.deployment.ID))
	second, _ := h.deployments.FindByID(h.deployment.ID)

	assert.Equal(t, domain.DeploymentStatusRunning, second.Status)
	assert.NotEqual(t, firstContainer, second.ContainerID)

	// The previous container was cleaned up, not leaked.
	_, err := h.runtime.GetContainer(ctx, firstContainer)
	assert.ErrorIs(t, err, docker.ErrNotFound)
}

func TestStop_Idempotent(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})
	ctx := context.Background()

	require.NoError(t, h.service.Deploy(ctx, h.deployment.ID))
	require.NoError(t, h.service.Stop(ctx, h.deployment.ID))

	d, _ := h.deployments.FindByID(h.deployment.ID)
	assert.Equal(t, domain.DeploymentStatusStopped, d.Status)
	assert.Empty(t, d.ContainerID)

	// Stopping again with no container still succeeds.
	require.NoError(t, h.service.Stop(ctx, h.deployment.ID))
	d, _ = h.deployments.FindByID(h.deployment.ID)
	assert.Equal(t, domain.DeploymentStatusStopped, d.Status)
}

func TestRestart_NoContainerIsNoOp(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})

	restarted, err := h.service.Restart(context.Background(), h.deployment.ID)
	require.NoError(t, err)
	assert.False(t, restarted)
}

func TestRestart_RunningContainer(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})
	ctx := context.Background()

	require.NoError(t, h.service.Deploy(ctx, h.deployment.ID))

	restarted, err := h.service.Restart(ctx, h.deployment.ID)
	require.NoError(t, err)
	assert.True(t, restarted)
}

func TestDeploy_UnknownDeployment(t *testing.T) {
	h := newHarness(t, nodeFixture(), staticVerifier{healthy: true})

	err := h.service.Deploy(context.Background(), uuid.New())
	assert.Error(t, err)
}
