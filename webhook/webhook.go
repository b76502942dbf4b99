// Package webhook validates inbound push events and schedules redeploys.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dess-cd/dess/deployer"
	"github.com/dess-cd/dess/domain"
	"github.com/dess-cd/dess/repository"
)

// Deployer is the redeploy surface the dispatcher schedules onto.
type Deployer interface {
	Deploy(ctx context.Context, deploymentID uuid.UUID) error
}

// Result describes how an inbound event was handled.
type Result struct {
	Accepted  bool
	Triggered bool
	Reason    string
}

// Dispatcher validates inbound events against a deployment's configuration
// and enqueues asynchronous redeploys. Handle never blocks on the pipeline;
// the HTTP response path must stay fast.
type Dispatcher struct {
	deployments repository.DeploymentRepository
	events      repository.WebhookEventRepository
	deployer    Deployer
}

func NewDispatcher(
	deployments repository.DeploymentRepository,
	events repository.WebhookEventRepository,
	d Deployer,
) *Dispatcher {
	return &Dispatcher{
		deployments: deployments,
		events:      events,
		deployer:    d,
	}
}

// Handle records the event and triggers a redeploy when it is a push to the
// deployment's configured branch and auto-deploy is enabled.
func (d *Dispatcher) Handle(ctx context.Context, deploymentID uuid.UUID, eventType string, payload []byte) (Result, error) {
	deployment, err := d.deployments.FindByID(deploymentID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load deployment %s: %w", deploymentID, err)
	}

	if !deployment.AutoDeploy {
		return Result{Reason: "auto-deploy not enabled"}, nil
	}

	event := domain.NewWebhookEvent(deploymentID, eventType, string(payload))
	if err := d.events.Create(&event); err != nil {
		return Result{}, fmt.Errorf("failed to record webhook event: %w", err)
	}
	// Whatever the outcome below, the event counts as handled.
	defer func() {
		event.Processed = true
		if updateErr := d.events.Update(&event); updateErr != nil {
			slog.Warn("Failed to mark webhook event processed",
				"layer", "webhook",
				"deployment_id", deploymentID,
				"event_id", event.ID,
				"error", updateErr,
			)
		}
	}()

	result := Result{Accepted: true}

	if eventType != "push" {
		result.Reason = fmt.Sprintf("ignoring %s event", eventType)
		return result, nil
	}

	ref := pushRef(payload)
	targetRef := "refs/heads/" + deployment.Branch
	if ref != targetRef {
		result.Reason = fmt.Sprintf("ref %s does not match %s", ref, targetRef)
		return result, nil
	}

	event.TriggeredDeployment = true
	result.Triggered = true
	result.Reason = "redeploy scheduled"

	// Schedule the pipeline detached from the request context; the webhook
	// response must not wait for it.
	go func() {
		if err := d.deployer.Deploy(context.Background(), deploymentID); err != nil {
			if errors.Is(err, deployer.ErrDeployInProgress) {
				slog.Info("Webhook redeploy skipped, pipeline already running",
					"layer", "webhook",
					"deployment_id", deploymentID,
				)
				return
			}
			slog.Error("Webhook-triggered deploy failed",
				"layer", "webhook",
				"deployment_id", deploymentID,
				"error", err,
			)
		}
	}()

	slog.Info("Webhook triggered redeploy",
		"layer", "webhook",
		"operation", "handle",
		"deployment_id", deploymentID,
		"ref", ref,
	)
	return result, nil
}

// pushRef extracts the ref field from a push payload. Malformed payloads
// yield an empty ref, which never matches a branch.
func pushRef(payload []byte) string {
	var body struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Ref
}
