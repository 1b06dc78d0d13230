package paymentswebhook

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
)

type fakeConfirmer struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, orderID uuid.UUID) error {
	f.calls = append(f.calls, orderID)
	return f.err
}

type fakeGuard struct {
	processed map[uuid.UUID]bool
	checkErr  error
	deleted   []uuid.UUID
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{processed: make(map[uuid.UUID]bool)}
}

func (f *fakeGuard) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	if f.processed[eventID] {
		return true, nil
	}
	f.processed[eventID] = true
	return false, nil
}

func (f *fakeGuard) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(f.processed, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newWebhookService(t *testing.T, orders *fakeConfirmer, guard *fakeGuard) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:      orders,
		Idempotency: guard,
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc
}

func TestHandleEventConfirmsPayment(t *testing.T) {
	orders := &fakeConfirmer{}
	guard := newFakeGuard()
	svc := newWebhookService(t, orders, guard)

	orderID := uuid.New()
	err := svc.HandleEvent(context.Background(), PaymentEvent{
		EventID: uuid.New(),
		Type:    EventPaymentSucceeded,
		OrderID: orderID,
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{orderID}, orders.calls)
}

func TestHandleEventDropsDuplicates(t *testing.T) {
	orders := &fakeConfirmer{}
	guard := newFakeGuard()
	svc := newWebhookService(t, orders, guard)

	event := PaymentEvent{
		EventID: uuid.New(),
		Type:    EventPaymentSucceeded,
		OrderID: uuid.New(),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.Len(t, orders.calls, 1)
}

func TestHandleEventReleasesClaimOnFailure(t *testing.T) {
	orders := &fakeConfirmer{err: errors.New("settlement blew up")}
	guard := newFakeGuard()
	svc := newWebhookService(t, orders, guard)

	event := PaymentEvent{
		EventID: uuid.New(),
		Type:    EventPaymentSucceeded,
		OrderID: uuid.New(),
	}
	err := svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	require.Equal(t, []uuid.UUID{event.EventID}, guard.deleted)

	// The retry is not treated as a duplicate.
	orders.err = nil
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.Len(t, orders.calls, 2)
}

func TestHandleEventPaymentFailedLeavesOrderAlone(t *testing.T) {
	orders := &fakeConfirmer{}
	guard := newFakeGuard()
	svc := newWebhookService(t, orders, guard)

	err := svc.HandleEvent(context.Background(), PaymentEvent{
		EventID: uuid.New(),
		Type:    EventPaymentFailed,
		OrderID: uuid.New(),
		Reason:  "card_declined",
	})
	require.NoError(t, err)
	require.Empty(t, orders.calls)
}

func TestHandleEventValidation(t *testing.T) {
	orders := &fakeConfirmer{}
	guard := newFakeGuard()
	svc := newWebhookService(t, orders, guard)

	err := svc.HandleEvent(context.Background(), PaymentEvent{
		Type:    EventPaymentSucceeded,
		OrderID: uuid.New(),
	})
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeValidation, coded.Code())

	err = svc.HandleEvent(context.Background(), PaymentEvent{
		EventID: uuid.New(),
		Type:    "payment_refunded",
		OrderID: uuid.New(),
	})
	require.Error(t, err)
	require.Empty(t, orders.calls)
}
