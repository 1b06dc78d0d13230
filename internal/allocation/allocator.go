package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/ledger"
	"github.com/jmcarrillo/fogata-backend/internal/releases"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/metrics"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
)

const defaultMaxDebitRetries = 5

// BatchDebit is one (batch, quantity) pair taken by an allocation.
type BatchDebit struct {
	BatchID  uuid.UUID       `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Allocator consumes stock batches strictly oldest-sequence-first. All methods
// are transaction-scoped: a failed allocation returns an error so the caller's
// transaction rolls the partial debits back, leaving the ledger untouched.
type Allocator struct {
	ledger     ledger.Repository
	releases   releases.Repository
	records    RecordsRepository
	outbox     outboxEmitter
	metrics    *metrics.AllocationMetrics
	logg       *logger.Logger
	maxRetries int
}

// AllocatorParams wires the allocator's collaborators.
type AllocatorParams struct {
	Ledger          ledger.Repository
	Releases        releases.Repository
	Records         RecordsRepository
	Outbox          outboxEmitter
	Metrics         *metrics.AllocationMetrics
	Logger          *logger.Logger
	MaxDebitRetries int
}

// NewAllocator validates and wires the FIFO allocator.
func NewAllocator(params AllocatorParams) (*Allocator, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Releases == nil {
		return nil, fmt.Errorf("release repository required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("records repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	retries := params.MaxDebitRetries
	if retries <= 0 {
		retries = defaultMaxDebitRetries
	}
	return &Allocator{
		ledger:     params.Ledger,
		releases:   params.Releases,
		records:    params.Records,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
		maxRetries: retries,
	}, nil
}

// AllocateTx drains the item's batches oldest first until required is met.
// Each debit is a conditional write; losing one to a concurrent allocator is
// recovered by re-reading the batch and retrying with the remainder, never by
// trusting the stale read. Exhausting all batches returns an
// INSUFFICIENT_STOCK error and the caller's transaction must roll back.
func (a *Allocator) AllocateTx(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, required decimal.Decimal) ([]BatchDebit, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !required.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "required quantity must be positive")
	}

	started := time.Now()
	repo := a.ledger.WithTx(tx)

	batches, err := repo.ListOpenBatches(ctx, itemID)
	if err != nil {
		return nil, err
	}

	remaining := required
	var debits []BatchDebit
	for _, batch := range batches {
		if !remaining.IsPositive() {
			break
		}
		debit, err := a.debitWithRetry(ctx, repo, batch, remaining)
		if err != nil {
			return nil, err
		}
		if debit.IsPositive() {
			debits = append(debits, BatchDebit{BatchID: batch.ID, Quantity: debit})
			remaining = remaining.Sub(debit)
		}
	}

	if remaining.IsPositive() {
		a.metrics.IncShortage("item")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"item_id":   itemID.String(),
				"required":  required.String(),
				"available": required.Sub(remaining).String(),
			})
	}

	a.metrics.IncSuccess("item")
	a.metrics.ObserveDuration("item", time.Since(started))
	return debits, nil
}

// debitWithRetry attempts a conditional decrement against one batch,
// re-reading current availability after every lost write.
func (a *Allocator) debitWithRetry(ctx context.Context, repo ledger.Repository, batch models.StockBatch, remaining decimal.Decimal) (decimal.Decimal, error) {
	available := batch.QuantityAvailable
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		debit := decimal.Min(remaining, available)
		if !debit.IsPositive() {
			return decimal.Zero, nil
		}

		ok, err := repo.DebitBatch(ctx, batch.ID, debit)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return debit, nil
		}

		// Lost to a concurrent writer: refresh and retry with what is left.
		a.metrics.IncDebitRetry("item")
		current, err := repo.GetBatch(ctx, batch.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Row gone: treat the batch as drained.
				return decimal.Zero, nil
			}
			return decimal.Zero, err
		}
		available = current.QuantityAvailable
	}
	return decimal.Zero, nil
}

// SettleReleaseTx allocates a pending release and records its batch debits.
// The release flips to released only if every unit was sourced.
func (a *Allocator) SettleReleaseTx(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]BatchDebit, error) {
	if releaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release id is required")
	}

	releaseRepo := a.releases.WithTx(tx)
	release, err := releaseRepo.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if release.Status != enums.ReleaseStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "release is not pending").
			WithDetails(map[string]any{"release_id": releaseID.String(), "status": release.Status.String()})
	}

	debits, err := a.AllocateTx(ctx, tx, release.ItemID, release.Quantity)
	if err != nil {
		return nil, err
	}

	recordsRepo := a.records.WithTx(tx)
	for _, debit := range debits {
		rid := release.ID
		record := models.AllocationRecord{
			ID:        uuid.New(),
			ReleaseID: &rid,
			ItemID:    release.ItemID,
			BatchID:   debit.BatchID,
			Quantity:  debit.Quantity,
		}
		if err := recordsRepo.Create(ctx, &record); err != nil {
			return nil, err
		}
	}

	ok, err := releaseRepo.TransitionStatus(ctx, releaseID, enums.ReleaseStatusPending, enums.ReleaseStatusReleased)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "release settled concurrently").
			WithDetails(map[string]any{"release_id": releaseID.String()})
	}

	if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReleaseSettled,
		AggregateType: enums.AggregateRelease,
		AggregateID:   release.ID,
		Data: map[string]any{
			"item_id":  release.ItemID.String(),
			"quantity": release.Quantity.String(),
			"debits":   debits,
		},
	}); err != nil {
		return nil, err
	}

	a.metrics.IncSuccess("release")
	return debits, nil
}

// SettleOrderTx settles every pending release of an order inside the caller's
// transaction. One shortage fails the whole settlement so the rollback leaves
// every release pending and every batch untouched.
func (a *Allocator) SettleOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (map[uuid.UUID][]BatchDebit, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	pending, err := a.releases.WithTx(tx).ListByOrderWithStatus(ctx, orderID, enums.ReleaseStatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no pending releases").
			WithDetails(map[string]any{"order_id": orderID.String()})
	}

	settled := make(map[uuid.UUID][]BatchDebit, len(pending))
	for _, release := range pending {
		debits, err := a.SettleReleaseTx(ctx, tx, release.ID)
		if err != nil {
			return nil, err
		}
		settled[release.ID] = debits
	}
	return settled, nil
}

// AllocateForRunTx satisfies one ingredient requirement of a production run
// and records the debits against the run.
func (a *Allocator) AllocateForRunTx(ctx context.Context, tx *gorm.DB, runID, itemID uuid.UUID, required decimal.Decimal) ([]BatchDebit, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production run id is required")
	}

	debits, err := a.AllocateTx(ctx, tx, itemID, required)
	if err != nil {
		return nil, err
	}

	recordsRepo := a.records.WithTx(tx)
	for _, debit := range debits {
		rid := runID
		record := models.AllocationRecord{
			ID:              uuid.New(),
			ProductionRunID: &rid,
			ItemID:          itemID,
			BatchID:         debit.BatchID,
			Quantity:        debit.Quantity,
		}
		if err := recordsRepo.Create(ctx, &record); err != nil {
			return nil, err
		}
	}
	return debits, nil
}
