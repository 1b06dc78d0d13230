package production

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/allocation"
	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	product "github.com/jmcarrillo/fogata-backend/internal/products"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type recipeResolver interface {
	ResolveRecipe(ctx context.Context, productID uuid.UUID) ([]catalog.RecipeComponent, error)
}

type runAllocator interface {
	AllocateForRunTx(ctx context.Context, tx *gorm.DB, runID, itemID uuid.UUID, required decimal.Decimal) ([]allocation.BatchDebit, error)
}

type runReverser interface {
	ReverseProductionRunTx(ctx context.Context, tx *gorm.DB, runID uuid.UUID) error
}

// Service manufactures finished goods: ingredients are allocated from the
// ledger synchronously and the product's stock is credited in the same
// transaction. Undo walks the whole thing back.
type Service interface {
	Run(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*models.ProductionRun, error)
	Undo(ctx context.Context, runID uuid.UUID) error
	Get(ctx context.Context, runID uuid.UUID) (*models.ProductionRun, error)
	List(ctx context.Context) ([]models.ProductionRun, error)
}

type service struct {
	repo      Repository
	products  product.Repository
	recipes   recipeResolver
	allocator runAllocator
	reverser  runReverser
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
}

// ServiceParams wires the production service's collaborators.
type ServiceParams struct {
	Repo      Repository
	Products  product.Repository
	Recipes   recipeResolver
	Allocator runAllocator
	Reverser  runReverser
	Tx        txRunner
	Outbox    outboxPublisher
	Logger    *logger.Logger
}

// NewService validates and wires the production service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("production repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Recipes == nil {
		return nil, fmt.Errorf("recipe resolver required")
	}
	if params.Allocator == nil {
		return nil, fmt.Errorf("allocator required")
	}
	if params.Reverser == nil {
		return nil, fmt.Errorf("reverser required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		products:  params.Products,
		recipes:   params.Recipes,
		allocator: params.Allocator,
		reverser:  params.Reverser,
		tx:        params.Tx,
		outbox:    params.Outbox,
		logg:      params.Logger,
	}, nil
}

// Run expands the product's recipe, allocates every ingredient FIFO and
// credits finished-goods stock. A shortage on any ingredient rolls the whole
// run back.
func (s *service) Run(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*models.ProductionRun, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	components, err := s.recipes.ResolveRecipe(ctx, productID)
	if err != nil {
		return nil, err
	}

	run := &models.ProductionRun{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  quantity,
		Status:    enums.ProductionRunStatusCompleted,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, run); err != nil {
			return err
		}
		for _, component := range components {
			required := quantity.Mul(component.QuantityPerUnit)
			if !required.IsPositive() {
				continue
			}
			if _, err := s.allocator.AllocateForRunTx(ctx, tx, run.ID, component.ItemID, required); err != nil {
				return err
			}
		}
		if err := s.products.WithTx(tx).CreditStock(ctx, productID, quantity); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductionCompleted,
			AggregateType: enums.AggregateProductionRun,
			AggregateID:   run.ID,
			Data: map[string]any{
				"product_id": productID.String(),
				"quantity":   quantity.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Undo reverses a completed run: the produced goods leave finished stock and
// the consumed ingredients return to the exact batches they came from. Undoing
// an already-undone run is a no-op.
func (s *service) Undo(ctx context.Context, runID uuid.UUID) error {
	if runID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "production run id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		run, err := repo.Get(ctx, runID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "production run not found")
			}
			return err
		}
		if run.Status == enums.ProductionRunStatusUndone {
			return nil
		}

		// The produced goods must still be on the shelf; undoing a run whose
		// output was already sold would drive product stock negative.
		ok, err := s.products.WithTx(tx).DebitStock(ctx, run.ProductID, run.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "produced goods already consumed").
				WithDetails(map[string]any{
					"production_run_id": runID.String(),
					"product_id":        run.ProductID.String(),
					"quantity":          run.Quantity.String(),
				})
		}

		if err := s.reverser.ReverseProductionRunTx(ctx, tx, runID); err != nil {
			return err
		}

		flipped, err := repo.TransitionStatus(ctx, runID, enums.ProductionRunStatusCompleted, enums.ProductionRunStatusUndone)
		if err != nil {
			return err
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "run changed concurrently").
				WithDetails(map[string]any{"production_run_id": runID.String()})
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductionUndone,
			AggregateType: enums.AggregateProductionRun,
			AggregateID:   runID,
			Data: map[string]any{
				"product_id": run.ProductID.String(),
				"quantity":   run.Quantity.String(),
			},
		})
	})
}

func (s *service) Get(ctx context.Context, runID uuid.UUID) (*models.ProductionRun, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production run id is required")
	}
	run, err := s.repo.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "production run not found")
		}
		return nil, err
	}
	return run, nil
}

func (s *service) List(ctx context.Context) ([]models.ProductionRun, error) {
	return s.repo.List(ctx)
}
