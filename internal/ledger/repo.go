package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
)

// Repository owns persistence for stock batches. Batch quantities are only
// ever mutated through the conditional DebitBatch/CreditBatch writes; callers
// must check the returned flag instead of trusting a prior read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, batch *models.StockBatch) error
	GetBatch(ctx context.Context, batchID uuid.UUID) (*models.StockBatch, error)
	ListOpenBatches(ctx context.Context, itemID uuid.UUID) ([]models.StockBatch, error)
	TotalAvailable(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
	TotalBatchedForPurchase(ctx context.Context, purchaseID uuid.UUID) (decimal.Decimal, error)
	NextSequence(ctx context.Context) (int64, error)
	DebitBatch(ctx context.Context, batchID uuid.UUID, qty decimal.Decimal) (bool, error)
	CreditBatch(ctx context.Context, batchID uuid.UUID, qty decimal.Decimal) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.StockBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.StockBatch, error) {
	var batch models.StockBatch
	if err := r.db.WithContext(ctx).
		Where("id = ?", batchID).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListOpenBatches returns the item's non-empty batches in FIFO order.
func (r *repository) ListOpenBatches(ctx context.Context, itemID uuid.UUID) ([]models.StockBatch, error) {
	var batches []models.StockBatch
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND quantity_available > 0", itemID).
		Order("sequence ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) TotalAvailable(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.StockBatch{}).
		Where("item_id = ?", itemID).
		Select("COALESCE(SUM(quantity_available), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// TotalBatchedForPurchase sums the quantities already received against a
// purchase, used to enforce the useful-quantity bound at intake.
func (r *repository) TotalBatchedForPurchase(ctx context.Context, purchaseID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.StockBatch{}).
		Where("purchase_id = ?", purchaseID).
		Select("COALESCE(SUM(quantity_received), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// NextSequence returns the next FIFO sequence number. Callers must invoke it
// inside the same transaction that creates the batch.
func (r *repository) NextSequence(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Model(&models.StockBatch{}).
		Select("COALESCE(MAX(sequence), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// DebitBatch decrements a batch only if it still holds at least qty. The
// returned flag is false when a concurrent writer drained the batch first.
func (r *repository) DebitBatch(ctx context.Context, batchID uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_batches
		SET quantity_available = quantity_available - ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity_available >= ?
	`, qty, batchID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreditBatch restores quantity onto an existing batch. The returned flag is
// false when the batch row no longer exists, which the compensator surfaces
// as a reversal inconsistency.
func (r *repository) CreditBatch(ctx context.Context, batchID uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_batches
		SET quantity_available = quantity_available + ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, batchID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
