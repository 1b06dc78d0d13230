package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBatch is one discrete quantity of an item received at a point in time.
// Sequence is the FIFO key: strictly increasing, assigned inside the intake
// transaction, never derived from storage row ids. QuantityAvailable is only
// mutated through conditional writes and never goes below zero.
type StockBatch struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID            uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	PurchaseID        uuid.UUID       `gorm:"column:purchase_id;type:uuid;not null;index"`
	Sequence          int64           `gorm:"column:sequence;not null;uniqueIndex"`
	QuantityReceived  decimal.Decimal `gorm:"column:quantity_received;type:numeric(14,4);not null"`
	QuantityAvailable decimal.Decimal `gorm:"column:quantity_available;type:numeric(14,4);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
