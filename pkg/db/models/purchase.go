package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase records an acquisition of raw material. UsefulQuantity bounds how
// much of the purchase can be turned into stock batches.
type Purchase struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID         uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	Supplier       string          `gorm:"column:supplier"`
	UsefulQuantity decimal.Decimal `gorm:"column:useful_quantity;type:numeric(14,4);not null"`
	PurchasedAt    time.Time       `gorm:"column:purchased_at;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
