package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mora-interactive/prizevault-backend/pkg/enums"
)

// ProgrammedPrize is an administrator-scheduled forced win consulted before
// randomized drawing. Consumption happens inside the draw transaction.
type ProgrammedPrize struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContainerTypeID uuid.UUID                   `gorm:"column:container_type_id;type:uuid;not null;index"`
	ItemRef         string                      `gorm:"column:item_ref;not null"`
	ItemName        string                      `gorm:"column:item_name;not null"`
	ItemValueCents  int64                       `gorm:"column:item_value_cents;not null"`
	Priority        int                         `gorm:"column:priority;not null;default:100"`
	TargetUserID    *uuid.UUID                  `gorm:"column:target_user_id;type:uuid"`
	ManualRelease   bool                        `gorm:"column:manual_release;not null;default:false"`
	ScheduledFor    time.Time                   `gorm:"column:scheduled_for;not null"`
	ExpiresAt       time.Time                   `gorm:"column:expires_at;not null"`
	Status          enums.ProgrammedPrizeStatus `gorm:"column:status;type:programmed_prize_status_enum;not null;default:'pending'"`
	CurrentUses     int                         `gorm:"column:current_uses;not null;default:0"`
	MaxUses         int                         `gorm:"column:max_uses;not null;default:1"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// DecisionType is the decision classification this override resolves to.
func (p ProgrammedPrize) DecisionType() enums.DecisionType {
	if p.ManualRelease {
		return enums.DecisionManualRelease
	}
	return enums.DecisionProgrammedPrize
}
