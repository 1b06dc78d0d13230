package allocation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
)

// RecordsRepository persists the batch-level audit trail of allocations.
type RecordsRepository interface {
	WithTx(tx *gorm.DB) RecordsRepository
	Create(ctx context.Context, record *models.AllocationRecord) error
	ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.AllocationRecord, error)
	ListByProductionRun(ctx context.Context, runID uuid.UUID) ([]models.AllocationRecord, error)
	DeleteByProductionRun(ctx context.Context, runID uuid.UUID) error
}

type recordsRepository struct {
	db *gorm.DB
}

// NewRecordsRepository returns an allocation record repository bound to the database.
func NewRecordsRepository(db *gorm.DB) RecordsRepository {
	return &recordsRepository{db: db}
}

func (r *recordsRepository) WithTx(tx *gorm.DB) RecordsRepository {
	if tx == nil {
		return r
	}
	return &recordsRepository{db: tx}
}

func (r *recordsRepository) Create(ctx context.Context, record *models.AllocationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *recordsRepository) ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.AllocationRecord, error) {
	var records []models.AllocationRecord
	if err := r.db.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *recordsRepository) ListByProductionRun(ctx context.Context, runID uuid.UUID) ([]models.AllocationRecord, error) {
	var records []models.AllocationRecord
	if err := r.db.WithContext(ctx).
		Where("production_run_id = ?", runID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *recordsRepository) DeleteByProductionRun(ctx context.Context, runID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("production_run_id = ?", runID).
		Delete(&models.AllocationRecord{}).Error
}
