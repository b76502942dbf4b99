package webhook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dess-cd/dess/domain"
)

type fakeDeployments struct {
	items map[uuid.UUID]*domain.Deployment
}

func (f *fakeDeployments) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	if d, ok := f.items[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("deployment %s not found", id)
}

func (f *fakeDeployments) FindByName(string) (*domain.Deployment, error) { return nil, nil }
func (f *fakeDeployments) Create(d *domain.Deployment) (*domain.Deployment, error) {
	f.items[d.ID] = d
	return d, nil
}
func (f *fakeDeployments) Update(d *domain.Deployment) error   { return nil }
func (f *fakeDeployments) List() ([]*domain.Deployment, error) { return nil, nil }
func (f *fakeDeployments) Delete(uuid.UUID) error              { return nil }

type fakeEvents struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.WebhookEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: make(map[uuid.UUID]*domain.WebhookEvent)}
}

func (f *fakeEvents) Create(e *domain.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *e
	f.events[e.ID] = &stored
	return nil
}

func (f *fakeEvents) Update(e *domain.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *e
	f.events[e.ID] = &stored
	return nil
}

func (f *fakeEvents) ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WebhookEvent
	for _, e := range f.events {
		if e.DeploymentID == deploymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDeployer struct {
	called chan uuid.UUID
}

func (f *fakeDeployer) Deploy(_ context.Context, id uuid.UUID) error {
	f.called <- id
	return nil
}

func setup(autoDeploy bool) (*Dispatcher, *domain.Deployment, *fakeEvents, *fakeDeployer) {
	d := domain.NewDeployment("demo", "https://example.com/demo/app")
	d.AutoDeploy = autoDeploy

	deployments := &fakeDeployments{items: map[uuid.UUID]*domain.Deployment{d.ID: &d}}
	events := newFakeEvents()
	dep := &fakeDeployer{called: make(chan uuid.UUID, 1)}

	return NewDispatcher(deployments, events, dep), &d, events, dep
}

func pushPayload(branch string) []byte {
	return []byte(fmt.Sprintf(`{"ref":"refs/heads/%s","after":"abc123"}`, branch))
}

func TestHandle_TriggersRedeploy(t *testing.T) {
	dispatcher, d, events, dep := setup(true)

	result, err := dispatcher.Handle(context.Background(), d.ID, "push", pushPayload("main"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.True(t, result.Triggered)

	select {
	case id := <-dep.called:
		assert.Equal(t, d.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("deploy was never scheduled")
	}

	stored, err := events.ListByDeploymentID(d.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Processed)
	assert.True(t, stored[0].TriggeredDeployment)
	assert.Equal(t, "push", stored[0].EventType)
}

func TestHandle_AutoDeployDisabled(t *testing.T) {
	dispatcher, d, events, dep := setup(false)

	result, err := dispatcher.Handle(context.Background(), d.ID, "push", pushPayload("main"))
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.False(t, result.Triggered)

	stored, _ := events.ListByDeploymentID(d.ID)
	assert.Empty(t, stored, "rejected events are not recorded")

	select {
	case <-dep.called:
		t.Fatal("deploy must not be scheduled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandle_WrongBranch(t *testing.T) {
	dispatcher, d, events, dep := setup(true)

	result, err := dispatcher.Handle(context.Background(), d.ID, "push", pushPayload("feature-x"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.False(t, result.Triggered)

	stored, _ := events.ListByDeploymentID(d.ID)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Processed)
	assert.False(t, stored[0].TriggeredDeployment)

	select {
	case <-dep.called:
		t.Fatal("deploy must not be scheduled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandle_NonPushEvent(t *testing.T) {
	dispatcher, d, events, _ := setup(true)

	result, err := dispatcher.Handle(context.Background(), d.ID, "ping", []byte(`{"zen":"ok"}`))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.False(t, result.Triggered)

	stored, _ := events.ListByDeploymentID(d.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "ping", stored[0].EventType)
	assert.True(t, stored[0].Processed)
}

func TestHandle_MalformedPayload(t *testing.T) {
	dispatcher, d, _, dep := setup(true)

	result, err := dispatcher.Handle(context.Background(), d.ID, "push", []byte(`{not json`))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.False(t, result.Triggered)

	select {
	case <-dep.called:
		t.Fatal("deploy must not be scheduled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandle_UnknownDeployment(t *testing.T) {
	dispatcher, _, _, _ := setup(true)

	_, err := dispatcher.Handle(context.Background(), uuid.New(), "push", pushPayload("main"))
	assert.Error(t, err)
}
