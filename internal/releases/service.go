package releases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/admission"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service creates and reads reservations for order demand.
type Service interface {
	CreateForOrder(ctx context.Context, orderID uuid.UUID, demands []admission.IngredientDemand) ([]models.InventoryRelease, error)
	CreateForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []admission.IngredientDemand) ([]models.InventoryRelease, error)
	ListPending(ctx context.Context, orderID uuid.UUID) ([]models.InventoryRelease, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryRelease, error)
}

type service struct {
	repo Repository
	db   txRunner
}

// NewService wires the reservation manager.
func NewService(repo Repository, db txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("release repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, db: db}, nil
}

// CreateForOrder inserts one pending release per ingredient demand inside a
// single transaction. An order never ends up with a partial reservation set.
func (s *service) CreateForOrder(ctx context.Context, orderID uuid.UUID, demands []admission.IngredientDemand) ([]models.InventoryRelease, error) {
	var created []models.InventoryRelease
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		created, txErr = s.CreateForOrderTx(ctx, tx, orderID, demands)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateForOrderTx is the transaction-scoped variant used when reservation
// creation must share a transaction with order insertion.
func (s *service) CreateForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []admission.IngredientDemand) ([]models.InventoryRelease, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if len(demands) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "demand list is empty")
	}
	for _, demand := range demands {
		if demand.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "demand item id is required")
		}
		if !demand.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "demand quantity must be positive")
		}
	}

	repo := s.repo.WithTx(tx)
	created := make([]models.InventoryRelease, 0, len(demands))
	for _, demand := range demands {
		oid := orderID
		release := models.InventoryRelease{
			ID:       uuid.New(),
			OrderID:  &oid,
			ItemID:   demand.ItemID,
			Quantity: demand.Quantity,
			Status:   enums.ReleaseStatusPending,
		}
		if err := repo.Create(ctx, &release); err != nil {
			return nil, err
		}
		created = append(created, release)
	}
	return created, nil
}

func (s *service) ListPending(ctx context.Context, orderID uuid.UUID) ([]models.InventoryRelease, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ListByOrderWithStatus(ctx, orderID, enums.ReleaseStatusPending)
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryRelease, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ListByOrder(ctx, orderID)
}
