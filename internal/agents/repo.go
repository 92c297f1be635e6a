package agents

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
)

// Repository exposes agent reads and the availability writes the dispatch
// engine performs as reservation bookkeeping.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListAll(ctx context.Context) ([]models.Agent, error)
	ListAvailable(ctx context.Context) ([]models.Agent, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	Create(ctx context.Context, agent *models.Agent) (*models.Agent, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an agents repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListAll(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) ListAvailable(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("created_at ASC").
		Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) Create(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	if err := r.db.WithContext(ctx).Create(agent).Error; err != nil {
		return nil, err
	}
	return agent, nil
}

func (r *repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", id).
		Update("is_available", available)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
