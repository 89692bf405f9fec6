package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mora-interactive/prizevault-backend/pkg/enums"
)

// UniqueDrawPurchaseConstraint names the index that makes purchase replay safe.
const UniqueDrawPurchaseConstraint = "idx_draw_decisions_purchase_id"

// DrawDecision is the append-only audit record for one draw. Rows are never
// mutated after creation; the purchase id unique index doubles as the
// idempotency guard for retried purchases.
type DrawDecision struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContainerTypeID      uuid.UUID          `gorm:"column:container_type_id;type:uuid;not null;index"`
	UserID               uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	PurchaseID           string             `gorm:"column:purchase_id;not null;uniqueIndex:idx_draw_decisions_purchase_id"`
	DecisionType         enums.DecisionType `gorm:"column:decision_type;type:decision_type_enum;not null"`
	ProbabilityUsed      float64            `gorm:"column:probability_used;type:numeric(8,6);not null"`
	BudgetAvailableCents int64              `gorm:"column:budget_available_cents;not null"`
	SaleCents            int64              `gorm:"column:sale_cents;not null"`
	ResultItemRef        *string            `gorm:"column:result_item_ref"`
	ResultItemName       *string            `gorm:"column:result_item_name"`
	ResultValueCents     int64              `gorm:"column:result_value_cents;not null;default:0"`
	ResultQuantity       int                `gorm:"column:result_quantity;not null;default:0"`
	Reason               *string            `gorm:"column:reason"`
	ProgrammedPrizeID    *uuid.UUID         `gorm:"column:programmed_prize_id;type:uuid"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
}
