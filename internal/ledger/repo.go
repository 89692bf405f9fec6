package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
)

// refillThresholdDivisor encodes the 10% low-water mark for auto-refill.
const refillThresholdDivisor = 10

// Repository owns the per-(containerType, day) financial rows. Every mutation
// is a single conditional UPDATE; read-then-write sequences never straddle a
// statement boundary, which is what keeps the budget invariant intact under
// concurrent draws.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetOrCreatePeriod(ctx context.Context, container *models.ContainerType, periodKey string) (*models.FinancialPeriod, error)
	FindPeriod(ctx context.Context, containerTypeID uuid.UUID, periodKey string) (*models.FinancialPeriod, error)
	CommitDraw(ctx context.Context, periodID uuid.UUID, saleCents, payoutCents int64) (bool, error)
	Credit(ctx context.Context, periodID uuid.UUID, amountCents int64) error
	RefillIfLow(ctx context.Context, periodID uuid.UUID, ceilingCents int64, now time.Time) (bool, error)
	ListPeriodsForDate(ctx context.Context, periodKey string) ([]models.FinancialPeriod, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// GetOrCreatePeriod upserts the ledger row for the period. The insert uses ON
// CONFLICT DO NOTHING so two concurrent first-draws of a day cannot create
// duplicate rows; the loser of the race re-reads the winner's row.
func (r *repository) GetOrCreatePeriod(ctx context.Context, container *models.ContainerType, periodKey string) (*models.FinancialPeriod, error) {
	found, err := r.FindPeriod(ctx, container.ID, periodKey)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	budget := container.DefaultDailyBudgetCents()
	period := models.FinancialPeriod{
		ID:                   uuid.New(),
		ContainerTypeID:      container.ID,
		PeriodKey:            periodKey,
		DailyBudgetCents:     budget,
		RemainingBudgetCents: budget,
		ProfitGoalCents:      budget,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "container_type_id"}, {Name: "period_key"}},
			DoNothing: true,
		}).
		Create(&period).Error; err != nil {
		return nil, err
	}

	found, err = r.FindPeriod(ctx, container.ID, periodKey)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

func (r *repository) FindPeriod(ctx context.Context, containerTypeID uuid.UUID, periodKey string) (*models.FinancialPeriod, error) {
	var period models.FinancialPeriod
	err := r.db.WithContext(ctx).
		Where("container_type_id = ? AND period_key = ?", containerTypeID, periodKey).
		First(&period).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &period, nil
}

// CommitDraw records one sale and its payout in a single conditional UPDATE.
// The update only matches while remaining_budget_cents covers the payout, so
// a debit that would breach zero simply affects no rows and the caller
// degrades the draw instead of overspending.
func (r *repository) CommitDraw(ctx context.Context, periodID uuid.UUID, saleCents, payoutCents int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FinancialPeriod{}).
		Where("id = ? AND remaining_budget_cents >= ?", periodID, payoutCents).
		Updates(map[string]any{
			"total_sales_cents":        gorm.Expr("total_sales_cents + ?", saleCents),
			"total_prizes_given_cents": gorm.Expr("total_prizes_given_cents + ?", payoutCents),
			"remaining_budget_cents":   gorm.Expr("remaining_budget_cents - ?", payoutCents),
			"draws_count":              gorm.Expr("draws_count + 1"),
			"goal_reached":             gorm.Expr("(total_sales_cents + ?) - (total_prizes_given_cents + ?) >= profit_goal_cents", saleCents, payoutCents),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Credit adds to the remaining budget unconditionally (operator top-up).
func (r *repository) Credit(ctx context.Context, periodID uuid.UUID, amountCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.FinancialPeriod{}).
		Where("id = ?", periodID).
		Update("remaining_budget_cents", gorm.Expr("remaining_budget_cents + ?", amountCents)).Error
}

// RefillIfLow tops the remaining budget up to the ceiling, but only while it
// sits under 10% of the daily budget. The condition makes the refill safe
// against concurrent watchdog runs and interleaved debits: a second attempt
// in the same window matches no rows.
func (r *repository) RefillIfLow(ctx context.Context, periodID uuid.UUID, ceilingCents int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FinancialPeriod{}).
		Where("id = ? AND remaining_budget_cents < daily_budget_cents / ?", periodID, refillThresholdDivisor).
		Updates(map[string]any{
			"remaining_budget_cents": ceilingCents,
			"refilled_at":            now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPeriodsForDate returns every container's ledger row for the given day.
// Used by the auto-refill watchdog.
func (r *repository) ListPeriodsForDate(ctx context.Context, periodKey string) ([]models.FinancialPeriod, error) {
	var periods []models.FinancialPeriod
	if err := r.db.WithContext(ctx).
		Where("period_key = ?", periodKey).
		Order("container_type_id ASC").
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}
