package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeLine maps one ingredient requirement of a finished product.
type RecipeLine struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_recipe_product_ingredient"`
	IngredientItemID uuid.UUID       `gorm:"column:ingredient_item_id;type:uuid;not null;uniqueIndex:idx_recipe_product_ingredient"`
	QuantityPerUnit  decimal.Decimal `gorm:"column:quantity_per_unit;type:numeric(14,4);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
