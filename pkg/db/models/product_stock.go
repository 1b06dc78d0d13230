package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStock tracks finished-goods quantity per product. Direct sales debit
// it synchronously; completed production runs credit it.
type ProductStock struct {
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null;default:0"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the singular table name.
func (ProductStock) TableName() string {
	return "product_stock"
}
