package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// InventoryRelease is a reservation of ingredient demand tied to an order.
// OrderID is nil for order-less demand. Status moves pending → released when
// the allocator settles it, and released → not_released on compensation.
type InventoryRelease struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   *uuid.UUID          `gorm:"column:order_id;type:uuid;index"`
	ItemID    uuid.UUID           `gorm:"column:item_id;type:uuid;not null;index"`
	Quantity  decimal.Decimal     `gorm:"column:quantity;type:numeric(14,4);not null"`
	Status    enums.ReleaseStatus `gorm:"column:status;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
