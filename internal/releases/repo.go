package releases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// Repository manages persistence for inventory releases. Status changes go
// through the guarded TransitionStatus so illegal moves lose the write race
// instead of clobbering a concurrent settlement.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, release *models.InventoryRelease) error
	Get(ctx context.Context, releaseID uuid.UUID) (*models.InventoryRelease, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryRelease, error)
	ListByOrderWithStatus(ctx context.Context, orderID uuid.UUID, status enums.ReleaseStatus) ([]models.InventoryRelease, error)
	TransitionStatus(ctx context.Context, releaseID uuid.UUID, from, to enums.ReleaseStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a release repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, release *models.InventoryRelease) error {
	return r.db.WithContext(ctx).Create(release).Error
}

func (r *repository) Get(ctx context.Context, releaseID uuid.UUID) (*models.InventoryRelease, error) {
	var release models.InventoryRelease
	if err := r.db.WithContext(ctx).Where("id = ?", releaseID).First(&release).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryRelease, error) {
	var out []models.InventoryRelease
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListByOrderWithStatus(ctx context.Context, orderID uuid.UUID, status enums.ReleaseStatus) ([]models.InventoryRelease, error) {
	var out []models.InventoryRelease
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus flips a release's status only when the row still holds the
// expected prior status. The returned flag is false when the row was already
// moved by another writer.
func (r *repository) TransitionStatus(ctx context.Context, releaseID uuid.UUID, from, to enums.ReleaseStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_releases
		SET status = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, releaseID, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
