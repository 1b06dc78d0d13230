package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
)

// Repository persists purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	Get(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error)
	List(ctx context.Context) ([]models.Purchase, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchase repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) Get(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).First(&purchase, "id = ?", purchaseID).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) List(ctx context.Context) ([]models.Purchase, error) {
	var purchases []models.Purchase
	if err := r.db.WithContext(ctx).Order("purchased_at DESC").Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}
