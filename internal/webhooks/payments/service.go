package paymentswebhook

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
)

const consumerName = "payments-webhook"

// Event types delivered by the payment gateway.
const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// PaymentEvent is the decoded gateway webhook body.
type PaymentEvent struct {
	EventID uuid.UUID `json:"event_id" validate:"required"`
	Type    string    `json:"type" validate:"required,oneof=payment_succeeded payment_failed"`
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Reason  string    `json:"reason,omitempty"`
}

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) error
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ServiceParams wire the webhook consumer.
type ServiceParams struct {
	Orders      paymentConfirmer
	Idempotency idempotencyGuard
	Logger      *logger.Logger
}

// Service consumes payment gateway events. Deliveries are at-least-once, so
// each event id is claimed in redis before any state change.
type Service struct {
	orders      paymentConfirmer
	idempotency idempotencyGuard
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Idempotency == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:      params.Orders,
		idempotency: params.Idempotency,
		logg:        params.Logger,
	}, nil
}

// HandleEvent processes one gateway delivery. Duplicate event ids are dropped
// without touching the order. When handling fails after the claim, the claim
// is released so the gateway's retry can reprocess the event.
func (s *Service) HandleEvent(ctx context.Context, event PaymentEvent) error {
	if event.EventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if event.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID.String(),
		"event_type": event.Type,
		"order_id":   event.OrderID.String(),
	})

	already, err := s.idempotency.CheckAndMarkProcessed(ctx, consumerName, event.EventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if already {
		s.logg.Info(logCtx, "duplicate payment event dropped")
		return nil
	}

	switch event.Type {
	case EventPaymentSucceeded:
		if err := s.orders.ConfirmPayment(ctx, event.OrderID); err != nil {
			if delErr := s.idempotency.Delete(ctx, consumerName, event.EventID); delErr != nil {
				s.logg.Error(logCtx, "release idempotency claim", delErr)
			}
			return err
		}
		s.logg.Info(logCtx, "payment confirmed")
		return nil
	case EventPaymentFailed:
		// The order stays pending; the customer can retry payment.
		s.logg.Info(s.logg.WithField(logCtx, "reason", event.Reason), "payment failed, order left pending")
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment event type").
			WithDetails(map[string]any{"type": event.Type})
	}
}
