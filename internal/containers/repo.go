package containers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
)

// Repository provides container type persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
	FindActive(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
	Save(ctx context.Context, container *models.ContainerType) error
	List(ctx context.Context, activeOnly bool) ([]models.ContainerType, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a container type repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerType, error) {
	var container models.ContainerType
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&container).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

func (r *repository) FindActive(ctx context.Context, id uuid.UUID) (*models.ContainerType, error) {
	var container models.ContainerType
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&container).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

func (r *repository) Save(ctx context.Context, container *models.ContainerType) error {
	return r.db.WithContext(ctx).Save(container).Error
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.ContainerType, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC, id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var containers []models.ContainerType
	if err := query.Find(&containers).Error; err != nil {
		return nil, err
	}
	return containers, nil
}
