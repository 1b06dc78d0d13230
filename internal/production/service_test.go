package production

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/allocation"
	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	"github.com/jmcarrillo/fogata-backend/internal/ledger"
	product "github.com/jmcarrillo/fogata-backend/internal/products"
	"github.com/jmcarrillo/fogata-backend/internal/releases"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
)

func newProductionDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:production_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS product_stock (
  product_id TEXT PRIMARY KEY,
  quantity NUMERIC NOT NULL DEFAULT 0,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS inventory_items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT,
  unit TEXT NOT NULL,
  restock_level NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS recipe_lines (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  ingredient_item_id TEXT NOT NULL,
  quantity_per_unit NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (product_id, ingredient_item_id)
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
);
CREATE TABLE IF NOT EXISTS allocation_records (
  id TEXT PRIMARY KEY,
  release_id TEXT,
  production_run_id TEXT,
  item_id TEXT NOT NULL,
  batch_id TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS inventory_releases (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  item_id TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS production_runs (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  status TEXT NOT NULL,
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

type runFixture struct {
	db  *gorm.DB
	svc Service
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()
	db := newProductionDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	emitter := nullEmitter{}

	ledgerRepo := ledger.NewRepository(db)
	releaseRepo := releases.NewRepository(db)
	recordsRepo := allocation.NewRecordsRepository(db)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)
	allocator, err := allocation.NewAllocator(allocation.AllocatorParams{
		Ledger:   ledgerRepo,
		Releases: releaseRepo,
		Records:  recordsRepo,
		Outbox:   emitter,
		Logger:   logg,
	})
	require.NoError(t, err)
	compensator, err := allocation.NewCompensator(allocation.CompensatorParams{
		Ledger:   ledgerRepo,
		Releases: releaseRepo,
		Records:  recordsRepo,
		Outbox:   emitter,
		Logger:   logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Products:  product.NewRepository(db),
		Recipes:   catalogSvc,
		Allocator: allocator,
		Reverser:  compensator,
		Tx:        &gormTxRunner{db: db},
		Outbox:    emitter,
		Logger:    logg,
	})
	require.NoError(t, err)
	return &runFixture{db: db, svc: svc}
}

func (f *runFixture) seedRecipe(t *testing.T, perUnit string) (productID, itemID uuid.UUID) {
	t.Helper()
	p := models.Product{ID: uuid.New(), Name: "tortillas", PriceCents: 500, IsActive: true}
	require.NoError(t, f.db.Create(&p).Error)
	item := models.InventoryItem{ID: uuid.New(), Name: "maiz", Unit: "kg"}
	require.NoError(t, f.db.Create(&item).Error)
	line := models.RecipeLine{
		ID:               uuid.New(),
		ProductID:        p.ID,
		IngredientItemID: item.ID,
		QuantityPerUnit:  decimal.RequireFromString(perUnit),
	}
	require.NoError(t, f.db.Create(&line).Error)
	return p.ID, item.ID
}

func (f *runFixture) seedBatch(t *testing.T, itemID uuid.UUID, seq int64, qty string) uuid.UUID {
	t.Helper()
	batch := models.StockBatch{
		ID:                uuid.New(),
		ItemID:            itemID,
		PurchaseID:        uuid.New(),
		Sequence:          seq,
		QuantityReceived:  decimal.RequireFromString(qty),
		QuantityAvailable: decimal.RequireFromString(qty),
	}
	require.NoError(t, f.db.Create(&batch).Error)
	return batch.ID
}

func (f *runFixture) batchAvailable(t *testing.T, batchID uuid.UUID) decimal.Decimal {
	t.Helper()
	var batch models.StockBatch
	require.NoError(t, f.db.First(&batch, "id = ?", batchID).Error)
	return batch.QuantityAvailable
}

func (f *runFixture) productStock(t *testing.T, productID uuid.UUID) decimal.Decimal {
	t.Helper()
	var stock models.ProductStock
	err := f.db.First(&stock, "product_id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero
	}
	require.NoError(t, err)
	return stock.Quantity
}

func TestRunAllocatesIngredientsAndCreditsProduct(t *testing.T) {
	t.Parallel()
	f := newRunFixture(t)
	ctx := context.Background()
	productID, itemID := f.seedRecipe(t, "0.5")
	batchID := f.seedBatch(t, itemID, 1, "10")

	run, err := f.svc.Run(ctx, productID, decimal.RequireFromString("8"))
	require.NoError(t, err)
	require.Equal(t, enums.ProductionRunStatusCompleted, run.Status)

	// 8 units at 0.5 kg each consume 4 kg.
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("6")))
	require.True(t, f.productStock(t, productID).Equal(decimal.RequireFromString("8")))

	var records []models.AllocationRecord
	require.NoError(t, f.db.Where("production_run_id = ?", run.ID).Find(&records).Error)
	require.Len(t, records, 1)
	require.True(t, records[0].Quantity.Equal(decimal.RequireFromString("4")))
}

func TestRunShortageRollsBackEverything(t *testing.T) {
	t.Parallel()
	f := newRunFixture(t)
	ctx := context.Background()
	productID, itemID := f.seedRecipe(t, "2")
	batchID := f.seedBatch(t, itemID, 1, "5")

	_, err := f.svc.Run(ctx, productID, decimal.RequireFromString("4"))
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())

	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("5")))
	require.True(t, f.productStock(t, productID).IsZero())
	var count int64
	require.NoError(t, f.db.Model(&models.ProductionRun{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRunWithoutRecipeFails(t *testing.T) {
	t.Parallel()
	f := newRunFixture(t)
	ctx := context.Background()
	p := models.Product{ID: uuid.New(), Name: "cafe de olla", PriceCents: 300, IsActive: true}
	require.NoError(t, f.db.Create(&p).Error)

	_, err := f.svc.Run(ctx, p.ID, decimal.RequireFromString("1"))
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeRecipeNotFound, pkgerrors.As(err).Code())
}

func TestUndoRestoresIngredientsAndStock(t *testing.T) {
	t.Parallel()
	f := newRunFixture(t)
	ctx := context.Background()
	productID, itemID := f.seedRecipe(t, "1")
	batchID := f.seedBatch(t, itemID, 1, "10")

	run, err := f.svc.Run(ctx, productID, decimal.RequireFromString("6"))
	require.NoError(t, err)
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("4")))

	require.NoError(t, f.svc.Undo(ctx, run.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("10")))
	require.True(t, f.productStock(t, productID).IsZero())

	current, err := f.svc.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ProductionRunStatusUndone, current.Status)

	// Undoing twice is a no-op; stock stays put.
	require.NoError(t, f.svc.Undo(ctx, run.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("10")))
}

func TestUndoRefusedWhenOutputAlreadySold(t *testing.T) {
	t.Parallel()
	f := newRunFixture(t)
	ctx := context.Background()
	productID, itemID := f.seedRecipe(t, "1")
	batchID := f.seedBatch(t, itemID, 1, "10")

	run, err := f.svc.Run(ctx, productID, decimal.RequireFromString("6"))
	require.NoError(t, err)

	// Most of the output leaves the shelf before the undo.
	require.NoError(t, f.db.Exec(
		"UPDATE product_stock SET quantity = 2 WHERE product_id = ?", productID,
	).Error)

	err = f.svc.Undo(ctx, run.ID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())

	// Nothing moved: the run is still completed and the batch untouched.
	current, err := f.svc.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ProductionRunStatusCompleted, current.Status)
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("4")))
}
