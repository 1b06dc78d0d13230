package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
)

// Repository reads catalog data: inventory items, products and recipe lines.
// The allocator never writes here; the only mutation is the recipe upsert
// used by catalog management.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListRecipeLines(ctx context.Context, productID uuid.UUID) ([]models.RecipeLine, error)
	UpsertRecipeLine(ctx context.Context, line *models.RecipeLine) error
	ListBelowRestock(ctx context.Context) ([]BelowRestockRow, error)
}

// BelowRestockRow reports an item whose open stock no longer clears its
// restock buffer.
type BelowRestockRow struct {
	ItemID       uuid.UUID `gorm:"column:item_id" json:"item_id"`
	Name         string    `gorm:"column:name" json:"name"`
	Unit         string    `gorm:"column:unit" json:"unit"`
	RestockLevel string    `gorm:"column:restock_level" json:"restock_level"`
	Available    string    `gorm:"column:available" json:"available"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListRecipeLines(ctx context.Context, productID uuid.UUID) ([]models.RecipeLine, error) {
	var lines []models.RecipeLine
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// UpsertRecipeLine replaces the requirement for a (product, ingredient) pair.
func (r *repository) UpsertRecipeLine(ctx context.Context, line *models.RecipeLine) error {
	res := r.db.WithContext(ctx).
		Model(&models.RecipeLine{}).
		Where("product_id = ? AND ingredient_item_id = ?", line.ProductID, line.IngredientItemID).
		Update("quantity_per_unit", line.QuantityPerUnit)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *repository) ListBelowRestock(ctx context.Context) ([]BelowRestockRow, error) {
	var rows []BelowRestockRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT i.id AS item_id,
		       i.name AS name,
		       i.unit AS unit,
		       i.restock_level AS restock_level,
		       COALESCE(SUM(b.quantity_available), 0) AS available
		FROM inventory_items i
		LEFT JOIN stock_batches b ON b.item_id = i.id
		GROUP BY i.id, i.name, i.unit, i.restock_level
		HAVING COALESCE(SUM(b.quantity_available), 0) <= i.restock_level
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
