package allocation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/ledger"
	"github.com/jmcarrillo/fogata-backend/internal/releases"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
)

func newTestCompensator(t *testing.T, db *gorm.DB) (*Compensator, *capturedEmitter) {
	t.Helper()
	emitter := &capturedEmitter{}
	comp, err := NewCompensator(CompensatorParams{
		Ledger:   ledger.NewRepository(db),
		Releases: releases.NewRepository(db),
		Records:  NewRecordsRepository(db),
		Outbox:   emitter,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return comp, emitter
}

func settleRelease(t *testing.T, db *gorm.DB, alloc *Allocator, releaseID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := alloc.SettleReleaseTx(context.Background(), tx, releaseID)
		return err
	}))
}

func TestReverseReleaseRestoresOriginatingBatches(t *testing.T) {
	t.Parallel()
	db := newAllocationDB(t)
	alloc, _ := newTestAllocator(t, db)
	comp, emitter := newTestCompensator(t, db)
	ctx := context.Background()
	itemID := uuid.New()

	first := seedAllocBatch(t, db, itemID, 1, "5")
	second := seedAllocBatch(t, db, itemID, 2, "10")
	release := seedRelease(t, db, itemID, "7", enums.ReleaseStatusPending)
	settleRelease(t, db, alloc, release.ID)

	require.True(t, batchAvailable(t, db, first.ID).IsZero())
	require.True(t, batchAvailable(t, db, second.ID).Equal(decimal.RequireFromString("8")))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return comp.ReverseReleaseTx(ctx, tx, release.ID)
	}))

	// Every debited batch is credited the exact amount it gave up.
	require.True(t, batchAvailable(t, db, first.ID).Equal(decimal.RequireFromString("5")))
	require.True(t, batchAvailable(t, db, second.ID).Equal(decimal.RequireFromString("10")))

	var current models.InventoryRelease
	require.NoError(t, db.First(&current, "id = ?", release.ID).Error)
	require.Equal(t, enums.ReleaseStatusNotReleased, current.Status)

	require.Len(t, emitter.events, 1)
	require.Equal(t, enums.EventReleaseReversed, emitter.events[0].EventType)
}

func TestReverseReleaseIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newAllocationDB(t)
	alloc, _ := newTestAllocator(t, db)
	comp, emitter := newTestCompensator(t, db)
	ctx := context.Background()
	itemID := uuid.New()

	batch := seedAllocBatch(t, db, itemID, 1, "10")
	release := seedRelease(t, db, itemID, "4", enums.ReleaseStatusPending)
	settleRelease(t, db, alloc, release.ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return comp.ReverseReleaseTx(ctx, tx, release.ID)
		}))
	}

	// Repeated reversals must not credit the batch more than once.
	require.True(t, batchAvailable(t, db, batch.ID).Equal(decimal.RequireFromString("10")))
	require.Len(t, emitter.events, 1)
}

func TestReverseReleaseDiscardsPendingWithoutCrediting(t *testing.T) {
	t.Parallel()
	db := newAllocationDB(t)
	comp, emitter := newTestCompensator(t, db)
	ctx := context.Background()
	itemID := uuid.New()

	batch := seedAllocBatch(t, db, itemID, 1, "10")
	release := seedRelease(t, db, itemID, "4", enums.ReleaseStatusPending)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return comp.ReverseReleaseTx(ctx, tx, release.ID)
	}))

	var current models.InventoryRelease
	require.NoError(t, db.First(&current, "id = ?", release.ID).Error)
	require.Equal(t, enums.ReleaseStatusNotReleased, current.Status)
	require.True(t, batchAvailable(t, db, batch.ID).Equal(decimal.RequireFromString("10")))
	require.Empty(t, emitter.events)
}

func TestReverseReleaseMissingBatchFailsTransaction(t *testing.T) {
	t.Parallel()
	db := newAllocationDB(t)
	alloc, _ := newTestAllocator(t, db)
	comp, _ := newTestCompensator(t, db)
	ctx := context.Background()
	itemID := uuid.New()

	batch := seedAllocBatch(t, db, itemID, 1, "5")
	release := seedRelease(t, db, itemID, "5", enums.ReleaseStatusPending)
	settleRelease(t, db, alloc, release.ID)

	require.NoError(t, db.Delete(&models.StockBatch{}, "id = ?", batch.ID).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return comp.ReverseReleaseTx(ctx, tx, release.ID)
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeReversalInconsistency, pkgerrors.As(err).Code())

	// The rollback must leave the release settled so a retry sees the same state.
	var current models.InventoryRelease
	require.NoError(t, db.First(&current, "id = ?", release.ID).Error)
	require.Equal(t, enums.ReleaseStatusReleased, current.Status)
}

func TestReverseOrderReversesEveryRelease(t *testing.T) {
	t.Parallel()
	db := newAllocationDB(t)
	alloc, _ := newTestAllocator(t, db)
	comp, _ := newTestCompensator(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	itemA := uuid.New()
	itemB := uuid.New()
	batchA := seedAllocBatch(t, db, itemA, 1, "10")
	batchB := seedAllocBatch(t, db, itemB, 2, "10")

	var releaseIDs []uuid.UUID
	for _, seed := range []struct {
		itemID uuid.UUID
		qty    string
	}{{itemA, "3"}, {itemB, "6"}} {
		release := models.InventoryRelease{
			ID:       uuid.New(),
			OrderID:  &orderID,
			ItemID:   seed.itemID,
			Quantity: decimal.RequireFromString(seed.qty),
			Status:   enums.ReleaseStatusPending,
		}
		require.NoError(t, db.Create(&release).Error)
		settleRelease(t, db, alloc, release.ID)
		releaseIDs = append(releaseIDs, release.ID)
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return comp.ReverseOrderTx(ctx, tx, orderID)
	}))

	require.True(t, batchAvailable(t, db, batchA.ID).Equal(decimal.RequireFromString("10")))
	require.True(t, batchAvailable(t, db, batchB.ID).Equal(decimal.RequireFromString("10")))
	for _, id := range releaseIDs {
		var current models.InventoryRelease
		require.NoError(t, db.First(&current, "id = ?", id).Error)
		require.Equal(t, enums.ReleaseStatusNotReleased, current.Status)
	}
}

func TestReverseProductionRunCreditsAndClearsRecords(t *testing.T) {
	t.Parallel()
	db := newAllocationDB(t)
	alloc, _ := newTestAllocator(t, db)
	comp, _ := newTestCompensator(t, db)
	ctx := context.Background()
	itemID := uuid.New()
	runID := uuid.New()

	batch := seedAllocBatch(t, db, itemID, 1, "9")
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := alloc.AllocateForRunTx(ctx, tx, runID, itemID, decimal.RequireFromString("4"))
		return err
	}))
	require.True(t, batchAvailable(t, db, batch.ID).Equal(decimal.RequireFromString("5")))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return comp.ReverseProductionRunTx(ctx, tx, runID)
	}))

	require.True(t, batchAvailable(t, db, batch.ID).Equal(decimal.RequireFromString("9")))
	var count int64
	require.NoError(t, db.Model(&models.AllocationRecord{}).Where("production_run_id = ?", runID).Count(&count).Error)
	require.Zero(t, count)
}
