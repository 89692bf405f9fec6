package overrides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
)

// Repository manages administrator-programmed prizes. Consumption uses the
// same conditional-update discipline as the budget debit so two concurrent
// draws can never double-consume a max_uses=1 override.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, prize *models.ProgrammedPrize) error
	Find(ctx context.Context, id uuid.UUID) (*models.ProgrammedPrize, error)
	NextPending(ctx context.Context, containerTypeID, userID uuid.UUID, now time.Time) (*models.ProgrammedPrize, error)
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an override repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, prize *models.ProgrammedPrize) error {
	return r.db.WithContext(ctx).Create(prize).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.ProgrammedPrize, error) {
	var prize models.ProgrammedPrize
	if err := r.db.WithContext(ctx).First(&prize, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &prize, nil
}

// NextPending returns the highest-priority (lowest value) pending override
// for the container that either targets everyone or targets this user. Ties
// break on earliest scheduled_for.
func (r *repository) NextPending(ctx context.Context, containerTypeID, userID uuid.UUID, now time.Time) (*models.ProgrammedPrize, error) {
	var prize models.ProgrammedPrize
	err := r.db.WithContext(ctx).
		Where("container_type_id = ? AND status = ? AND expires_at > ? AND scheduled_for <= ?",
			containerTypeID, enums.ProgrammedPrizePending, now, now).
		Where("target_user_id IS NULL OR target_user_id = ?", userID).
		Order("priority ASC, scheduled_for ASC").
		First(&prize).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prize, nil
}

// Consume burns one use. The WHERE clause re-checks status and remaining
// uses, so a racing draw that consumed the final use first leaves this
// update matching zero rows.
func (r *repository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProgrammedPrize{}).
		Where("id = ? AND status = ? AND current_uses < max_uses", id, enums.ProgrammedPrizePending).
		Updates(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"status": gorm.Expr("CASE WHEN current_uses + 1 >= max_uses THEN ? ELSE ? END",
				enums.ProgrammedPrizeConsumed, enums.ProgrammedPrizePending),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Revoke cancels a pending override.
func (r *repository) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProgrammedPrize{}).
		Where("id = ? AND status = ?", id, enums.ProgrammedPrizePending).
		Update("status", enums.ProgrammedPrizeRevoked)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireDue sweeps pending overrides whose expiry has passed.
func (r *repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProgrammedPrize{}).
		Where("status = ? AND expires_at <= ?", enums.ProgrammedPrizePending, now).
		Update("status", enums.ProgrammedPrizeExpired)
	return res.RowsAffected, res.Error
}
