package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mora-interactive/prizevault-backend/pkg/enums"
)

// ContainerType is a purchasable product granting one draw (a chest or
// scratch-card tier). Long-lived, edited by administrators.
type ContainerType struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string              `gorm:"column:name;not null"`
	PriceCents             int64               `gorm:"column:price_cents;not null"`
	RTPTarget              float64             `gorm:"column:rtp_target;type:numeric(6,5);not null"`
	RTPEnabled             bool                `gorm:"column:rtp_enabled;not null;default:true"`
	OperatingMode          enums.OperatingMode `gorm:"column:operating_mode;type:operating_mode_enum;not null;default:'normal'"`
	EmergencyStopCents     int64               `gorm:"column:emergency_stop_cents;not null;default:0"`
	DailyBudgetMultiplier  int                 `gorm:"column:daily_budget_multiplier;not null;default:10"`
	RefillBudgetMultiplier int                 `gorm:"column:refill_budget_multiplier;not null;default:10"`
	Active                 bool                `gorm:"column:active;not null;default:true"`
	PrizeEntries           []PrizeEntry        `gorm:"foreignKey:ContainerTypeID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// DefaultDailyBudgetCents derives the opening budget for a new period.
func (c ContainerType) DefaultDailyBudgetCents() int64 {
	multiplier := int64(c.DailyBudgetMultiplier)
	if multiplier <= 0 {
		multiplier = 1
	}
	return c.PriceCents * multiplier
}

// RefillCeilingCents is the level the auto-refill watchdog tops a period up to.
func (c ContainerType) RefillCeilingCents(dailyBudgetCents int64) int64 {
	multiplier := int64(c.RefillBudgetMultiplier)
	if multiplier <= 0 {
		multiplier = 1
	}
	return dailyBudgetCents * multiplier
}
