package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/ledger"
	"github.com/jmcarrillo/fogata-backend/internal/releases"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/metrics"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
)

// Compensator is the only writer that credits stock batches. It replays a
// settlement's allocation records against the exact originating batches so a
// full reversal restores the pre-allocation ledger state.
type Compensator struct {
	ledger   ledger.Repository
	releases releases.Repository
	records  RecordsRepository
	outbox   outboxEmitter
	metrics  *metrics.AllocationMetrics
	logg     *logger.Logger
}

// CompensatorParams wires the compensator's collaborators.
type CompensatorParams struct {
	Ledger   ledger.Repository
	Releases releases.Repository
	Records  RecordsRepository
	Outbox   outboxEmitter
	Metrics  *metrics.AllocationMetrics
	Logger   *logger.Logger
}

// NewCompensator validates and wires the compensator.
func NewCompensator(params CompensatorParams) (*Compensator, error) {
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
	return &Compensator{
		ledger:   params.Ledger,
		releases: params.Releases,
		records:  params.Records,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// ReverseReleaseTx credits back every batch debited for a settled release and
// flips it to not_released. Reversing a release that is already not_released
// is a no-op: the guarded status transition is the idempotency barrier, so
// batches are never double-credited.
func (c *Compensator) ReverseReleaseTx(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error {
	if releaseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "release id is required")
	}

	releaseRepo := c.releases.WithTx(tx)
	release, err := releaseRepo.Get(ctx, releaseID)
	if err != nil {
		return err
	}

	switch release.Status {
	case enums.ReleaseStatusNotReleased:
		return nil
	case enums.ReleaseStatusPending:
		// Nothing was ever debited; just discard the reservation.
		ok, err := releaseRepo.TransitionStatus(ctx, releaseID, enums.ReleaseStatusPending, enums.ReleaseStatusNotReleased)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "release changed concurrently").
				WithDetails(map[string]any{"release_id": releaseID.String()})
		}
		return nil
	}

	// Claim the reversal before crediting; a concurrent reversal that already
	// flipped the row wins and this call becomes a no-op.
	ok, err := releaseRepo.TransitionStatus(ctx, releaseID, enums.ReleaseStatusReleased, enums.ReleaseStatusNotReleased)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	records, err := c.records.WithTx(tx).ListByRelease(ctx, releaseID)
	if err != nil {
		return err
	}

	ledgerRepo := c.ledger.WithTx(tx)
	for _, record := range records {
		credited, err := ledgerRepo.CreditBatch(ctx, record.BatchID, record.Quantity)
		if err != nil {
			return err
		}
		if !credited {
			// A referenced batch must never disappear while records point at
			// it; failing the transaction keeps the reversal all-or-nothing.
			return pkgerrors.New(pkgerrors.CodeReversalInconsistency, "reversal target batch missing").
				WithDetails(map[string]any{
					"release_id": releaseID.String(),
					"batch_id":   record.BatchID.String(),
					"quantity":   record.Quantity.String(),
				})
		}
	}

	if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReleaseReversed,
		AggregateType: enums.AggregateRelease,
		AggregateID:   release.ID,
		Data: map[string]any{
			"item_id":  release.ItemID.String(),
			"quantity": release.Quantity.String(),
		},
	}); err != nil {
		return err
	}

	c.metrics.IncReversal("release")
	return nil
}

// ReverseOrderTx reverses every release of an order, aggregating per-release
// failures so the caller sees all of them at once.
func (c *Compensator) ReverseOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	all, err := c.releases.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	var combined error
	for _, release := range all {
		if err := c.ReverseReleaseTx(ctx, tx, release.ID); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("release %s: %w", release.ID, err))
		}
	}
	return combined
}

// ReverseProductionRunTx credits back a run's batch debits and deletes its
// allocation records.
func (c *Compensator) ReverseProductionRunTx(ctx context.Context, tx *gorm.DB, runID uuid.UUID) error {
	if runID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "production run id is required")
	}

	recordsRepo := c.records.WithTx(tx)
	records, err := recordsRepo.ListByProductionRun(ctx, runID)
	if err != nil {
		return err
	}

	ledgerRepo := c.ledger.WithTx(tx)
	for _, record := range records {
		credited, err := ledgerRepo.CreditBatch(ctx, record.BatchID, record.Quantity)
		if err != nil {
			return err
		}
		if !credited {
			return pkgerrors.New(pkgerrors.CodeReversalInconsistency, "reversal target batch missing").
				WithDetails(map[string]any{
					"production_run_id": runID.String(),
					"batch_id":          record.BatchID.String(),
					"quantity":          record.Quantity.String(),
				})
		}
	}

	if err := recordsRepo.DeleteByProductionRun(ctx, runID); err != nil {
		return err
	}

	c.metrics.IncReversal("production_run")
	return nil
}
