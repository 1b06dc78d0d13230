package production

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// Repository persists production runs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, run *models.ProductionRun) error
	Get(ctx context.Context, runID uuid.UUID) (*models.ProductionRun, error)
	List(ctx context.Context) ([]models.ProductionRun, error)
	TransitionStatus(ctx context.Context, runID uuid.UUID, from, to enums.ProductionRunStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a production run repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, run *models.ProductionRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) Get(ctx context.Context, runID uuid.UUID) (*models.ProductionRun, error) {
	var run models.ProductionRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) List(ctx context.Context) ([]models.ProductionRun, error) {
	var runs []models.ProductionRun
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *repository) TransitionStatus(ctx context.Context, runID uuid.UUID, from, to enums.ProductionRunStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE production_runs
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, runID, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
