// Package repository provides the data access layer for deployments,
// deployment logs and webhook events.
package repository

import (
	"encoding/json"
	"log/slog"

	"github.com/dess-cd/dess/db"
	"github.com/dess-cd/dess/domain"
	"github.com/dess-cd/dess/encryption"
)

type DeploymentMapper struct {
	encryption *encryption.EncryptionService
}

func NewDeploymentMapper(encryptionSvc *encryption.EncryptionService) *DeploymentMapper {
	return &DeploymentMapper{encryption: encryptionSvc}
}

func (m *DeploymentMapper) ToDomain(d *db.DeploymentModel) *domain.Deployment {
	status, err := domain.ParseDeploymentStatus(d.Status)
	if err != nil {
		status = domain.DeploymentStatusPending
	}

	projectType, err := domain.ParseProjectType(d.ProjectType)
	if err != nil {
		projectType = domain.ProjectTypeUnknown
	}

	// Decrypt webhook secret if present
	webhookSecret := ""
	if d.WebhookSecret != "" && m.encryption != nil {
		decrypted, err := m.encryption.Decrypt(d.WebhookSecret)
		if err != nil {
			// Log but don't fail; the deployment should still be usable.
			// This can happen if the encryption key changed.
			slog.Error("Failed to decrypt webhook secret",
				"deployment_id", d.ID,
				"deployment_name", d.Name,
				"error", err)
		} else {
			webhookSecret = decrypted
		}
	}

	return &domain.Deployment{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		RepoURL:         d.RepoURL,
		Branch:          d.Branch,
		ProjectType:     projectType,
		Status:          status,
		DeployURL:       d.DeployURL,
		Port:            d.Port,
		DockerfilePath:  d.DockerfilePath,
		BuildCommand:    d.BuildCommand,
		StartCommand:    d.StartCommand,
		EnvironmentVars: parseEnvironmentVars(d.EnvironmentVars),
		ContainerID:     d.ContainerID,
		ImageName:       d.ImageName,
		BuildLog:        d.BuildLog,
		DeployLog:       d.DeployLog,
		ErrorLog:        d.ErrorLog,
		WebhookSecret:   webhookSecret,
		AutoDeploy:      d.AutoDeploy,
		LastDeployedAt:  d.LastDeployedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func (m *DeploymentMapper) ToModel(d *domain.Deployment) *db.DeploymentModel {
	model := &db.DeploymentModel{
		BaseModel: db.BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Name:            d.Name,
		Description:     d.Description,
		RepoURL:         d.RepoURL,
		Branch:          d.Branch,
		ProjectType:     d.ProjectType.String(),
		Status:          d.Status.String(),
		DeployURL:       d.DeployURL,
		Port:            d.Port,
		DockerfilePath:  d.DockerfilePath,
		BuildCommand:    d.BuildCommand,
		StartCommand:    d.StartCommand,
		EnvironmentVars: serializeEnvironmentVars(d.EnvironmentVars),
		ContainerID:     d.ContainerID,
		ImageName:       d.ImageName,
		BuildLog:        d.BuildLog,
		DeployLog:       d.DeployLog,
		ErrorLog:        d.ErrorLog,
		AutoDeploy:      d.AutoDeploy,
		LastDeployedAt:  d.LastDeployedAt,
	}

	// Encrypt webhook secret if present
	if d.WebhookSecret != "" && m.encryption != nil {
		encrypted, err := m.encryption.Encrypt(d.WebhookSecret)
		if err != nil {
			slog.Error("Failed to encrypt webhook secret",
				"deployment_id", d.ID,
				"deployment_name", d.Name,
				"error", err)
		} else {
			model.WebhookSecret = encrypted
		}
	}

	return model
}

type DeploymentLogMapper struct{}

func (m *DeploymentLogMapper) ToDomain(l *db.DeploymentLogModel) *domain.DeploymentLogEntry {
	level, err := domain.ParseLogLevel(l.Level)
	if err != nil {
		level = domain.LogLevelInfo
	}

	return &domain.DeploymentLogEntry{
		ID:           l.ID,
		DeploymentID: l.DeploymentID,
		Level:        level,
		Message:      l.Message,
		CreatedAt:    l.CreatedAt,
	}
}

func (m *DeploymentLogMapper) ToModel(l *domain.DeploymentLogEntry) *db.DeploymentLogModel {
	return &db.DeploymentLogModel{
		BaseModel: db.BaseModel{
			ID:        l.ID,
			CreatedAt: l.CreatedAt,
		},
		DeploymentID: l.DeploymentID,
		Level:        string(l.Level),
		Message:      l.Message,
	}
}

type WebhookEventMapper struct{}

func (m *WebhookEventMapper) ToDomain(e *db.WebhookEventModel) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:                  e.ID,
		DeploymentID:        e.DeploymentID,
		EventType:           e.EventType,
		Payload:             e.Payload,
		Processed:           e.Processed,
		TriggeredDeployment: e.TriggeredDeployment,
		CreatedAt:           e.CreatedAt,
	}
}

func (m *WebhookEventMapper) ToModel(e *domain.WebhookEvent) *db.WebhookEventModel {
	return &db.WebhookEventModel{
		BaseModel: db.BaseModel{
			ID:        e.ID,
			CreatedAt: e.CreatedAt,
		},
		DeploymentID:        e.DeploymentID,
		EventType:           e.EventType,
		Payload:             e.Payload,
		Processed:           e.Processed,
		TriggeredDeployment: e.TriggeredDeployment,
	}
}

// Helper functions

func parseEnvironmentVars(s string) map[string]string {
	if s == "" {
		return map[string]string{}
	}
	var vars map[string]string
	if err := json.Unmarshal([]byte(s), &vars); err != nil {
		slog.Error("Failed to parse environment variables", "error", err)
		return map[string]string{}
	}
	return vars
}

func serializeEnvironmentVars(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	data, err := json.Marshal(vars)
	if err != nil {
		slog.Error("Failed to serialize environment variables", "error", err)
		return ""
	}
	return string(data)
}
