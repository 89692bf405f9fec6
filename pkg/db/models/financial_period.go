package models

import (
	"time"

	"github.com/google/uuid"
)

// PeriodKeyLayout formats the UTC calendar date used to bucket ledger rows.
const PeriodKeyLayout = "2006-01-02"

// FinancialPeriod is the per-(containerType, day) ledger row. It is the
// contention point of the whole engine: every mutation must be a single
// conditional UPDATE so that remaining_budget_cents can never go negative.
type FinancialPeriod struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContainerTypeID       uuid.UUID `gorm:"column:container_type_id;type:uuid;not null;uniqueIndex:idx_financial_periods_container_period"`
	PeriodKey             string    `gorm:"column:period_key;not null;uniqueIndex:idx_financial_periods_container_period"`
	TotalSalesCents       int64     `gorm:"column:total_sales_cents;not null;default:0"`
	TotalPrizesGivenCents int64     `gorm:"column:total_prizes_given_cents;not null;default:0"`
	DrawsCount            int64     `gorm:"column:draws_count;not null;default:0"`
	ProfitGoalCents       int64     `gorm:"column:profit_goal_cents;not null;default:0"`
	GoalReached           bool      `gorm:"column:goal_reached;not null;default:false"`
	DailyBudgetCents      int64     `gorm:"column:daily_budget_cents;not null"`
	RemainingBudgetCents  int64     `gorm:"column:remaining_budget_cents;not null"`
	RefilledAt            *time.Time `gorm:"column:refilled_at"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CurrentRTP is the realized payout ratio for the period so far.
func (f FinancialPeriod) CurrentRTP() float64 {
	if f.TotalSalesCents <= 0 {
		return 0
	}
	return float64(f.TotalPrizesGivenCents) / float64(f.TotalSalesCents)
}

// PeriodKeyFor returns the ledger bucket for the given instant.
func PeriodKeyFor(t time.Time) string {
	return t.UTC().Format(PeriodKeyLayout)
}
