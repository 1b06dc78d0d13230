package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is a raw material tracked by the stock ledger. RestockLevel is
// the safety buffer that must stay untouched by new production demand.
type InventoryItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	Category     string          `gorm:"column:category"`
	Unit         string          `gorm:"column:unit;not null"`
	RestockLevel decimal.Decimal `gorm:"column:restock_level;type:numeric(14,4);not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
