package purchases

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	"github.com/jmcarrillo/fogata-backend/internal/ledger"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
)

func newPurchasesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:purchases_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS inventory_items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT,
  unit TEXT NOT NULL,
  restock_level NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS purchases (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  supplier TEXT,
  useful_quantity NUMERIC NOT NULL,
  purchased_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS stock_batches (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  purchase_id TEXT NOT NULL,
  sequence INTEGER NOT NULL UNIQUE,
  quantity_received NUMERIC NOT NULL,
  quantity_available NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type nullEmitter struct{}

func (nullEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return nil
}

func newPurchasesService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	catalogSvc, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Ledger: ledger.NewRepository(db),
		Items:  catalogSvc,
		Tx:     &gormTxRunner{db: db},
		Outbox: nullEmitter{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func seedItem(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	item := models.InventoryItem{ID: uuid.New(), Name: "chile guajillo", Unit: "kg"}
	require.NoError(t, db.Create(&item).Error)
	return item.ID
}

func TestCreatePurchaseRequiresKnownItem(t *testing.T) {
	t.Parallel()
	db := newPurchasesDB(t)
	svc := newPurchasesService(t, db)
	ctx := context.Background()

	_, err := svc.CreatePurchase(ctx, CreatePurchaseInput{
		ItemID:         uuid.New(),
		UsefulQuantity: decimal.RequireFromString("10"),
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	itemID := seedItem(t, db)
	purchase, err := svc.CreatePurchase(ctx, CreatePurchaseInput{
		ItemID:         itemID,
		Supplier:       "mercado de abastos",
		UsefulQuantity: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	require.Equal(t, itemID, purchase.ItemID)
	require.False(t, purchase.PurchasedAt.IsZero())
}

func TestAddBatchAssignsMonotonicSequences(t *testing.T) {
	t.Parallel()
	db := newPurchasesDB(t)
	svc := newPurchasesService(t, db)
	ctx := context.Background()
	itemID := seedItem(t, db)

	purchase, err := svc.CreatePurchase(ctx, CreatePurchaseInput{
		ItemID:         itemID,
		UsefulQuantity: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)

	first, err := svc.AddBatch(ctx, purchase.ID, decimal.RequireFromString("4"))
	require.NoError(t, err)
	second, err := svc.AddBatch(ctx, purchase.ID, decimal.RequireFromString("3"))
	require.NoError(t, err)

	require.Equal(t, int64(1), first.Sequence)
	require.Equal(t, int64(2), second.Sequence)
	require.True(t, first.QuantityAvailable.Equal(first.QuantityReceived))
}

func TestAddBatchBoundedByUsefulQuantity(t *testing.T) {
	t.Parallel()
	db := newPurchasesDB(t)
	svc := newPurchasesService(t, db)
	ctx := context.Background()
	itemID := seedItem(t, db)

	purchase, err := svc.CreatePurchase(ctx, CreatePurchaseInput{
		ItemID:         itemID,
		UsefulQuantity: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)

	_, err = svc.AddBatch(ctx, purchase.ID, decimal.RequireFromString("7"))
	require.NoError(t, err)

	// Only 3 of the purchase remain unbatched.
	_, err = svc.AddBatch(ctx, purchase.ID, decimal.RequireFromString("4"))
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	batch, err := svc.AddBatch(ctx, purchase.ID, decimal.RequireFromString("3"))
	require.NoError(t, err)
	require.True(t, batch.QuantityReceived.Equal(decimal.RequireFromString("3")))
}

func TestAddBatchValidation(t *testing.T) {
	t.Parallel()
	db := newPurchasesDB(t)
	svc := newPurchasesService(t, db)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, uuid.Nil, decimal.RequireFromString("1"))
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.AddBatch(ctx, uuid.New(), decimal.Zero)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.AddBatch(ctx, uuid.New(), decimal.RequireFromString("1"))
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
