// Package db provides database models and utilities for Dess.
package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DeploymentModel struct {
	BaseModel
	Name        string `gorm:"not null;unique;check:name <> ''"`
	Description string `gorm:"type:text"`

	RepoURL string `gorm:"not null;check:repo_url <> ''"`
	Branch  string `gorm:"not null;check:branch <> ''"`

	ProjectType string `gorm:"type:varchar(20)"` // assigned after analysis, empty before
	Status      string `gorm:"not null;check:status <> ''"`

	DeployURL string
	Port      *int

	DockerfilePath string `gorm:"not null"`
	BuildCommand   string `gorm:"type:text"`
	StartCommand   string `gorm:"type:text"`

	EnvironmentVars string `gorm:"type:text"` // JSON-encoded map

	ContainerID string
	ImageName   string

	BuildLog  string `gorm:"type:text"`
	DeployLog string `gorm:"type:text"`
	ErrorLog  string `gorm:"type:text"`

	WebhookSecret string `gorm:"type:text"` // encrypted at rest
	AutoDeploy    bool   `gorm:"not null"`

	LastDeployedAt *time.Time

	Logs          []DeploymentLogModel `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
	WebhookEvents []WebhookEventModel  `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

type DeploymentLogModel struct {
	BaseModel
	DeploymentID uuid.UUID `gorm:"not null;index"`
	Level        string    `gorm:"not null;check:level <> ''"`
	Message      string    `gorm:"type:text;not null"`

	Deployment DeploymentModel `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (DeploymentLogModel) TableName() string {
	return "deployment_logs"
}

type WebhookEventModel struct {
	BaseModel
	DeploymentID        uuid.UUID `gorm:"not null;index"`
	EventType           string    `gorm:"not null"`
	Payload             string    `gorm:"type:text"`
	Processed           bool      `gorm:"not null"`
	TriggeredDeployment bool      `gorm:"not null"`

	Deployment DeploymentModel `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (WebhookEventModel) TableName() string {
	return "webhook_events"
}
