package repository

import (
	"log/slog"

	"github.com/dess-cd/dess/db"
	"github.com/dess-cd/dess/domain"
	"github.com/dess-cd/dess/encryption"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeploymentRepository interface {
	FindByID(id uuid.UUID) (*domain.Deployment, error)
	FindByName(name string) (*domain.Deployment, error)
	Create(deployment *domain.Deployment) (*domain.Deployment, error)
	Update(deployment *domain.Deployment) error
	List() ([]*domain.Deployment, error)
	Delete(id uuid.UUID) error
}

type deploymentRepository struct {
	db     *gorm.DB
	mapper *DeploymentMapper
}

func (r *deploymentRepository) List() ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	if err := r.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	deployments := make([]*domain.Deployment, len(models))
	for i, model := range models {
		deployments[i] = r.mapper.ToDomain(&model)
	}
	return deployments, nil
}

func (r *deploymentRepository) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	var m db.DeploymentModel
	if err := r.db.First(&m, id).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_deployment",
			"deployment_id", id,
			"error", err)
		return nil, err // Pass through as-is
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *deploymentRepository) FindByName(name string) (*domain.Deployment, error) {
	var m db.DeploymentModel
	if err := r.db.Where("name = ?", name).First(&m).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *deploymentRepository) Create(deployment *domain.Deployment) (*domain.Deployment, error) {
	m := r.mapper.ToModel(deployment)
	if err := r.db.Create(m).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_deployment",
			"deployment_id", deployment.ID,
			"deployment_name", deployment.Name,
			"error", err)
		return nil, err // Pass through as-is
	}
	return r.mapper.ToDomain(m), nil
}

func (r *deploymentRepository) Update(deployment *domain.Deployment) error {
	m := r.mapper.ToModel(deployment)

	// Use Select to explicitly update all fields except CreatedAt, including
	// zero values, so that clearing container_id or port actually persists.
	return r.db.Model(&db.DeploymentModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("created_at").
		Updates(m).
		Error
}

func (r *deploymentRepository) Delete(id uuid.UUID) error {
	err := r.db.Delete(&db.DeploymentModel{}, id).Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_deployment",
			"deployment_id", id,
			"error", err)
	}
	return err // Pass through as-is
}

func NewDeploymentRepository(db *gorm.DB, encryptionSvc *encryption.EncryptionService) DeploymentRepository {
	return &deploymentRepository{
		db:     db,
		mapper: NewDeploymentMapper(encryptionSvc),
	}
}

type DeploymentLogRepository interface {
	Append(entry *domain.DeploymentLogEntry) error
	ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.DeploymentLogEntry, error)
}

type deploymentLogRepository struct {
	db     *gorm.DB
	mapper *DeploymentLogMapper
}

func (r *deploymentLogRepository) Append(entry *domain.DeploymentLogEntry) error {
	m := r.mapper.ToModel(entry)
	if err := r.db.Create(m).Error; err != nil {
		return err
	}
	// Update the domain object with the timestamps that GORM populated
	*entry = *r.mapper.ToDomain(m)
	return nil
}

func (r *deploymentLogRepository) ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.DeploymentLogEntry, error) {
	var models []db.DeploymentLogModel
	if err := r.db.Where("deployment_id = ?", deploymentID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]*domain.DeploymentLogEntry, len(models))
	for i, m := range models {
		entries[i] = r.mapper.ToDomain(&m)
	}
	return entries, nil
}

func NewDeploymentLogRepository(db *gorm.DB) DeploymentLogRepository {
	return &deploymentLogRepository{
		db:     db,
		mapper: &DeploymentLogMapper{},
	}
}

type WebhookEventRepository interface {
	Create(event *domain.WebhookEvent) error
	Update(event *domain.WebhookEvent) error
	ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.WebhookEvent, error)
}

type webhookEventRepository struct {
	db     *gorm.DB
	mapper *WebhookEventMapper
}

func (r *webhookEventRepository) Create(event *domain.WebhookEvent) error {
	m := r.mapper.ToModel(event)
	if err := r.db.Create(m).Error; err != nil {
		return err
	}
	*event = *r.mapper.ToDomain(m)
	return nil
}

func (r *webhookEventRepository) Update(event *domain.WebhookEvent) error {
	m := r.mapper.ToModel(event)
	if err := r.db.Save(m).Error; err != nil {
		return err
	}
	*event = *r.mapper.ToDomain(m)
	return nil
}

func (r *webhookEventRepository) ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.WebhookEvent, error) {
	var models []db.WebhookEventModel
	if err := r.db.Where("deployment_id = ?", deploymentID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]*domain.WebhookEvent, len(models))
	for i, m := range models {
		events[i] = r.mapper.ToDomain(&m)
	}
	return events, nil
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		mapper: &WebhookEventMapper{},
	}
}
