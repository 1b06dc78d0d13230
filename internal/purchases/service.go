package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/ledger"
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

type itemReader interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error)
}

// CreatePurchaseInput registers an acquisition of raw material.
type CreatePurchaseInput struct {
	ItemID         uuid.UUID       `json:"item_id"`
	Supplier       string          `json:"supplier"`
	UsefulQuantity decimal.Decimal `json:"useful_quantity"`
	PurchasedAt    time.Time       `json:"purchased_at"`
}

// Service registers purchases and turns them into sequenced stock batches.
type Service interface {
	CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error)
	AddBatch(ctx context.Context, purchaseID uuid.UUID, quantity decimal.Decimal) (*models.StockBatch, error)
	Get(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error)
	List(ctx context.Context) ([]models.Purchase, error)
}

type service struct {
	repo   Repository
	ledger ledger.Repository
	items  itemReader
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// ServiceParams wires the purchase service's collaborators.
type ServiceParams struct {
	Repo   Repository
	Ledger ledger.Repository
	Items  itemReader
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
}

// NewService validates and wires the purchase intake service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item reader required")
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
		repo:   params.Repo,
		ledger: params.Ledger,
		items:  params.Items,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !input.UsefulQuantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "useful quantity must be positive")
	}

	if _, err := s.items.GetItem(ctx, input.ItemID); err != nil {
		return nil, err
	}

	purchasedAt := input.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = time.Now().UTC()
	}
	purchase := &models.Purchase{
		ID:             uuid.New(),
		ItemID:         input.ItemID,
		Supplier:       input.Supplier,
		UsefulQuantity: input.UsefulQuantity,
		PurchasedAt:    purchasedAt,
	}
	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

// AddBatch converts part of a purchase into an open stock batch. The batch
// takes the next ledger-wide sequence number inside the same transaction, so
// arrival order is explicit and never inferred from timestamps. The sum of a
// purchase's batches can never exceed its useful quantity.
func (s *service) AddBatch(ctx context.Context, purchaseID uuid.UUID, quantity decimal.Decimal) (*models.StockBatch, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch quantity must be positive")
	}

	var batch *models.StockBatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		purchase, err := s.repo.WithTx(tx).Get(ctx, purchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}

		ledgerRepo := s.ledger.WithTx(tx)
		batched, err := ledgerRepo.TotalBatchedForPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		remaining := purchase.UsefulQuantity.Sub(batched)
		if quantity.GreaterThan(remaining) {
			return pkgerrors.New(pkgerrors.CodeConflict, "batch exceeds remaining useful quantity").
				WithDetails(map[string]any{
					"purchase_id": purchaseID.String(),
					"requested":   quantity.String(),
					"remaining":   remaining.String(),
				})
		}

		sequence, err := ledgerRepo.NextSequence(ctx)
		if err != nil {
			return err
		}
		batch = &models.StockBatch{
			ID:                uuid.New(),
			ItemID:            purchase.ItemID,
			PurchaseID:        purchase.ID,
			Sequence:          sequence,
			QuantityReceived:  quantity,
			QuantityAvailable: quantity,
		}
		if err := ledgerRepo.CreateBatch(ctx, batch); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBatchReceived,
			AggregateType: enums.AggregateStockBatch,
			AggregateID:   batch.ID,
			Data: map[string]any{
				"item_id":     batch.ItemID.String(),
				"purchase_id": purchase.ID.String(),
				"sequence":    sequence,
				"quantity":    quantity.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *service) Get(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	purchase, err := s.repo.Get(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, err
	}
	return purchase, nil
}

func (s *service) List(ctx context.Context) ([]models.Purchase, error) {
	return s.repo.List(ctx)
}
