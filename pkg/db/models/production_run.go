package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// ProductionRun is an order-less manufacture of a product, allocated
// synchronously at creation time.
type ProductionRun struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity  decimal.Decimal           `gorm:"column:quantity;type:numeric(14,4);not null"`
	Status    enums.ProductionRunStatus `gorm:"column:status;not null"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
