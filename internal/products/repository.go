package product

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
)

// Repository persists products and their finished-goods stock. Stock writes
// are conditional so the quantity can never be driven negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	DebitStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (bool, error)
	CreditStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a product repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetStock returns the on-hand finished-goods quantity, zero when the product
// has never been stocked.
func (r *repository) GetStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var stock models.ProductStock
	err := r.db.WithContext(ctx).First(&stock, "product_id = ?", productID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return stock.Quantity, nil
}

// DebitStock decrements on-hand quantity only when enough remains. The guard
// in the predicate makes concurrent oversells lose instead of going negative.
func (r *repository) DebitStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_stock
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND quantity >= ?
	`, quantity, productID, quantity)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreditStock adds finished goods, inserting the stock row on first credit.
func (r *repository) CreditStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_stock
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, quantity, productID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	stock := models.ProductStock{ProductID: productID, Quantity: quantity}
	return r.db.WithContext(ctx).Create(&stock).Error
}
