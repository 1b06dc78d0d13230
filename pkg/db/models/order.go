package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// Order is a customer demand for finished goods, either sold from stock
// (direct sale) or manufactured (production order).
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type      enums.OrderType   `gorm:"column:type;not null"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	Lines     []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PlacedAt  time.Time         `gorm:"column:placed_at;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLine is one (product, quantity) pair of an order.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
