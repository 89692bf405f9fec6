package models

import (
	"time"

	"github.com/google/uuid"
)

// PrizeEntry pairs a container type with a catalog item and a draw weight.
// Weight zero means the entry is display-only and never selectable.
type PrizeEntry struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContainerTypeID uuid.UUID `gorm:"column:container_type_id;type:uuid;not null;index"`
	ItemRef         string    `gorm:"column:item_ref;not null"`
	ItemName        string    `gorm:"column:item_name;not null"`
	ItemValueCents  int64     `gorm:"column:item_value_cents;not null"`
	Rarity          *string   `gorm:"column:rarity"`
	Weight          int       `gorm:"column:weight;not null;default:0"`
	MinQuantity     int       `gorm:"column:min_quantity;not null;default:1"`
	MaxQuantity     int       `gorm:"column:max_quantity;not null;default:1"`
	Active          bool      `gorm:"column:active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Drawable reports whether the weighted sampler may select this entry.
func (p PrizeEntry) Drawable() bool {
	return p.Active && p.Weight > 0
}
