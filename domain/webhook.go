package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent records one inbound webhook delivery for a deployment.
type WebhookEvent struct {
	ID                  uuid.UUID
	DeploymentID        uuid.UUID
	EventType           string
	Payload             string
	Processed           bool
	TriggeredDeployment bool
	CreatedAt           time.Time
}

func NewWebhookEvent(deploymentID uuid.UUID, eventType, payload string) WebhookEvent {
	return WebhookEvent{
		ID:           uuid.New(),
		DeploymentID: deploymentID,
		EventType:    eventType,
		Payload:      payload,
	}
}
