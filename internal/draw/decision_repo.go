package draw

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
)

// DecisionRepository persists the append-only draw audit log. Rows are only
// ever inserted; the unique purchase_id index is the idempotency guard.
type DecisionRepository interface {
	WithTx(tx *gorm.DB) DecisionRepository
	Create(ctx context.Context, decision *models.DrawDecision) error
	FindByPurchaseID(ctx context.Context, purchaseID string) (*models.DrawDecision, error)
	ListByContainerSince(ctx context.Context, containerTypeID uuid.UUID, since time.Time, limit int) ([]models.DrawDecision, error)
}

type decisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository returns a decision log repository.
func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) WithTx(tx *gorm.DB) DecisionRepository {
	if tx == nil {
		return r
	}
	return &decisionRepository{db: tx}
}

func (r *decisionRepository) Create(ctx context.Context, decision *models.DrawDecision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

func (r *decisionRepository) FindByPurchaseID(ctx context.Context, purchaseID string) (*models.DrawDecision, error) {
	var decision models.DrawDecision
	err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		First(&decision).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &decision, nil
}

func (r *decisionRepository) ListByContainerSince(ctx context.Context, containerTypeID uuid.UUID, since time.Time, limit int) ([]models.DrawDecision, error) {
	query := r.db.WithContext(ctx).
		Where("container_type_id = ? AND created_at >= ?", containerTypeID, since).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var decisions []models.DrawDecision
	if err := query.Find(&decisions).Error; err != nil {
		return nil, err
	}
	return decisions, nil
}
