package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/admission"
	"github.com/jmcarrillo/fogata-backend/internal/allocation"
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

type admissionChecker interface {
	Check(ctx context.Context, demand []admission.ProductDemand) (*admission.Result, error)
}

type releaseCreator interface {
	CreateForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, demands []admission.IngredientDemand) ([]models.InventoryRelease, error)
}

type orderSettler interface {
	SettleOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (map[uuid.UUID][]allocation.BatchDebit, error)
}

type orderReverser interface {
	ReverseOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service drives the order lifecycle: pending → processing → completed, with
// cancellation compensating whatever was already taken from the ledger.
type Service interface {
	CreateDirectSale(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	CreateProductionOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) error
	Complete(ctx context.Context, orderID uuid.UUID) error
	Cancel(ctx context.Context, orderID uuid.UUID) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
}

type service struct {
	repo      Repository
	products  product.Repository
	tx        txRunner
	admission admissionChecker
	releases  releaseCreator
	settler   orderSettler
	reverser  orderReverser
	outbox    outboxPublisher
	logg      *logger.Logger
}

// ServiceParams wires the order service's collaborators.
type ServiceParams struct {
	Repo      Repository
	Products  product.Repository
	Tx        txRunner
	Admission admissionChecker
	Releases  releaseCreator
	Settler   orderSettler
	Reverser  orderReverser
	Outbox    outboxPublisher
	Logger    *logger.Logger
}

// NewService validates and wires the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Admission == nil {
		return nil, fmt.Errorf("admission checker required")
	}
	if params.Releases == nil {
		return nil, fmt.Errorf("release creator required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("order settler required")
	}
	if params.Reverser == nil {
		return nil, fmt.Errorf("order reverser required")
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
		tx:        params.Tx,
		admission: params.Admission,
		releases:  params.Releases,
		settler:   params.Settler,
		reverser:  params.Reverser,
		outbox:    params.Outbox,
		logg:      params.Logger,
	}, nil
}

func validateLines(lines []OrderLineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line product id is required")
		}
		if !line.Quantity.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}
	return nil
}

func buildOrder(orderType enums.OrderType, status enums.OrderStatus, input CreateOrderInput) *models.Order {
	placedAt := input.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}
	order := &models.Order{
		ID:       uuid.New(),
		Type:     orderType,
		Status:   status,
		PlacedAt: placedAt,
	}
	for _, line := range input.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return order
}

// CreateDirectSale sells finished goods off the shelf. Stock is deducted
// synchronously with a conditional decrement per line, and the order completes
// immediately since there is nothing left to fulfill.
func (s *service) CreateDirectSale(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	order := buildOrder(enums.OrderTypeDirectSale, enums.OrderStatusCompleted, input)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productsRepo := s.products.WithTx(tx)
		for _, line := range input.Lines {
			p, err := productsRepo.GetProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": line.ProductID.String()})
				}
				return err
			}
			if !p.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "product is not active").
					WithDetails(map[string]any{"product_id": p.ID.String()})
			}
			ok, err := productsRepo.DebitStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient finished-goods stock").
					WithDetails(map[string]any{
						"product_id": line.ProductID.String(),
						"requested":  line.Quantity.String(),
					})
			}
		}

		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: OrderCreatedEvent{
				OrderID: order.ID,
				Type:    order.Type,
				Status:  order.Status,
				Lines:   input.Lines,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateProductionOrder admits demand against stock sitting above restock
// levels and reserves the expanded ingredient requirements. Nothing is debited
// yet; settlement happens when payment is confirmed.
func (s *service) CreateProductionOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	demand := make([]admission.ProductDemand, 0, len(input.Lines))
	for _, line := range input.Lines {
		demand = append(demand, admission.ProductDemand{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	result, err := s.admission.Check(ctx, demand)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, pkgerrors.New(pkgerrors.CodeStockAboveRestock, "demand exceeds stock above restock levels").
			WithDetails(map[string]any{"shortages": result.Shortages})
	}

	order := buildOrder(enums.OrderTypeProduction, enums.OrderStatusPending, input)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if _, err := s.releases.CreateForOrderTx(ctx, tx, order.ID, result.Demands); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: OrderCreatedEvent{
				OrderID: order.ID,
				Type:    order.Type,
				Status:  order.Status,
				Lines:   input.Lines,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ConfirmPayment moves a pending order to processing and settles all of its
// releases in one transaction. A settlement-time shortage is a normal outcome:
// the transaction rolls back, the order stays pending and can be retried once
// stock arrives.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		switch order.Status {
		case enums.OrderStatusProcessing, enums.OrderStatusCompleted:
			// Payment already applied; a repeated webhook delivery is a no-op.
			return nil
		case enums.OrderStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		ok, err := repo.TransitionStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusProcessing)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		if _, err := s.settler.SettleOrderTx(ctx, tx, orderID); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: OrderStateChangedEvent{
				OrderID: orderID,
				From:    enums.OrderStatusPending,
				To:      enums.OrderStatusProcessing,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderSettled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          OrderStateChangedEvent{OrderID: orderID, From: enums.OrderStatusPending, To: enums.OrderStatusProcessing},
		})
	})
	if err == nil {
		return nil
	}

	if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeInsufficientStock {
		// The settlement transaction rolled back, so the failure record needs
		// its own transaction.
		emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderSettlementFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Data:          OrderSettlementFailedEvent{OrderID: orderID, Reason: coded.Message()},
			})
		})
		if emitErr != nil {
			logCtx := s.logg.WithOrderID(ctx, orderID.String())
			s.logg.Error(logCtx, "record settlement failure", emitErr)
		}
	}
	return err
}

// Complete closes out a processing order.
func (s *service) Complete(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionStatus(ctx, orderID, enums.OrderStatusProcessing, enums.OrderStatusCompleted)
		if err != nil {
			return err
		}
		if !ok {
			order, err := repo.Get(ctx, orderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not processing").
				WithDetails(map[string]any{"order_id": orderID.String(), "status": order.Status.String()})
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: OrderStateChangedEvent{
				OrderID: orderID,
				From:    enums.OrderStatusProcessing,
				To:      enums.OrderStatusCompleted,
			},
		})
	})
}

// Cancel discards a pending order or compensates a processing one, crediting
// every debited batch back before the order flips to cancelled. Cancelling an
// already-cancelled order is a no-op.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		switch order.Status {
		case enums.OrderStatusCancelled:
			return nil
		case enums.OrderStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed order cannot be cancelled").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		if order.Type == enums.OrderTypeProduction {
			if err := s.reverser.ReverseOrderTx(ctx, tx, orderID); err != nil {
				return err
			}
		}

		ok, err := repo.TransitionStatus(ctx, orderID, order.Status, enums.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: OrderStateChangedEvent{
				OrderID: orderID,
				From:    order.Status,
				To:      enums.OrderStatusCancelled,
			},
		})
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context) ([]models.Order, error) {
	return s.repo.List(ctx)
}
