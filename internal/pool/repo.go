package pool

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
)

// Repository reads the prize pool for a container type. The draw engine reads
// through it on every draw so that operator weight edits apply immediately.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ActiveEntries(ctx context.Context, containerTypeID uuid.UUID) ([]models.PrizeEntry, error)
	UpsertEntry(ctx context.Context, entry *models.PrizeEntry) error
	FindEntry(ctx context.Context, id uuid.UUID) (*models.PrizeEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a prize pool repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ActiveEntries returns active entries in a stable order, including
// weight-zero display-only entries.
func (r *repository) ActiveEntries(ctx context.Context, containerTypeID uuid.UUID) ([]models.PrizeEntry, error) {
	var entries []models.PrizeEntry
	if err := r.db.WithContext(ctx).
		Where("container_type_id = ? AND active = ?", containerTypeID, true).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) UpsertEntry(ctx context.Context, entry *models.PrizeEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) FindEntry(ctx context.Context, id uuid.UUID) (*models.PrizeEntry, error) {
	var entry models.PrizeEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
