package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/admission"
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

func newOrdersDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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
CREATE TABLE IF NOT EXISTS inventory_releases (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  item_id TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  status TEXT NOT NULL,
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
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  status TEXT NOT NULL,
  placed_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  created_at DATETIME
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

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.EventType)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	emitter *recordingEmitter
}

func newOrdersFixture(t *testing.T) *fixture {
	t.Helper()
	db := newOrdersDB(t)
	emitter := &recordingEmitter{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	ledgerRepo := ledger.NewRepository(db)
	releaseRepo := releases.NewRepository(db)
	recordsRepo := allocation.NewRecordsRepository(db)
	productsRepo := product.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)

	catalogSvc, err := catalog.NewService(catalogRepo)
	require.NoError(t, err)
	admissionSvc, err := admission.NewService(catalogSvc, catalogSvc, ledgerRepo)
	require.NoError(t, err)
	releasesSvc, err := releases.NewService(releaseRepo, &gormTxRunner{db: db})
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
		Products:  productsRepo,
		Tx:        &gormTxRunner{db: db},
		Admission: admissionSvc,
		Releases:  releasesSvc,
		Settler:   allocator,
		Reverser:  compensator,
		Outbox:    emitter,
		Logger:    logg,
	})
	require.NoError(t, err)

	return &fixture{db: db, svc: svc, emitter: emitter}
}

func (f *fixture) seedItem(t *testing.T, restock string) uuid.UUID {
	t.Helper()
	item := models.InventoryItem{
		ID:           uuid.New(),
		Name:         "masa",
		Unit:         "kg",
		RestockLevel: decimal.RequireFromString(restock),
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item.ID
}

func (f *fixture) seedProduct(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p := models.Product{ID: uuid.New(), Name: name, PriceCents: 2000, IsActive: true}
	require.NoError(t, f.db.Create(&p).Error)
	return p.ID
}

func (f *fixture) seedRecipeLine(t *testing.T, productID, itemID uuid.UUID, perUnit string) {
	t.Helper()
	line := models.RecipeLine{
		ID:               uuid.New(),
		ProductID:        productID,
		IngredientItemID: itemID,
		QuantityPerUnit:  decimal.RequireFromString(perUnit),
	}
	require.NoError(t, f.db.Create(&line).Error)
}

func (f *fixture) seedBatch(t *testing.T, itemID uuid.UUID, seq int64, qty string) uuid.UUID {
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

func (f *fixture) batchAvailable(t *testing.T, batchID uuid.UUID) decimal.Decimal {
	t.Helper()
	var batch models.StockBatch
	require.NoError(t, f.db.First(&batch, "id = ?", batchID).Error)
	return batch.QuantityAvailable
}

func (f *fixture) productStock(t *testing.T, productID uuid.UUID) decimal.Decimal {
	t.Helper()
	var stock models.ProductStock
	err := f.db.First(&stock, "product_id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero
	}
	require.NoError(t, err)
	return stock.Quantity
}

func (f *fixture) orderStatus(t *testing.T, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", orderID).Error)
	return order.Status
}

func TestCreateDirectSaleDeductsFinishedGoods(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()
	productID := f.seedProduct(t, "tamal oaxaqueño")
	require.NoError(t, f.db.Create(&models.ProductStock{ProductID: productID, Quantity: decimal.RequireFromString("5")}).Error)

	order, err := f.svc.CreateDirectSale(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("3")}},
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderTypeDirectSale, order.Type)
	require.Equal(t, enums.OrderStatusCompleted, order.Status)
	require.True(t, f.productStock(t, productID).Equal(decimal.RequireFromString("2")))

	// Only 2 left; the oversell must fail without persisting an order.
	_, err = f.svc.CreateDirectSale(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("3")}},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())
	require.True(t, f.productStock(t, productID).Equal(decimal.RequireFromString("2")))

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCreateProductionOrderAdmission(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()

	itemID := f.seedItem(t, "10")
	productID := f.seedProduct(t, "pozole")
	f.seedRecipeLine(t, productID, itemID, "1")
	f.seedBatch(t, itemID, 1, "15")

	// 15 available, 10 reserved for restock: exactly 5 may be promised.
	order, err := f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("5")}},
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)

	var pending []models.InventoryRelease
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&pending).Error)
	require.Len(t, pending, 1)
	require.Equal(t, enums.ReleaseStatusPending, pending[0].Status)
	require.True(t, pending[0].Quantity.Equal(decimal.RequireFromString("5")))

	// One more unit would eat into the restock buffer.
	_, err = f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("6")}},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStockAboveRestock, pkgerrors.As(err).Code())
}

func TestCreateProductionOrderMissingRecipe(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()
	productID := f.seedProduct(t, "aguas frescas")

	_, err := f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("2")}},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeRecipeNotFound, pkgerrors.As(err).Code())
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()

	itemID := f.seedItem(t, "10")
	productID := f.seedProduct(t, "mole negro")
	f.seedRecipeLine(t, productID, itemID, "1")
	batchID := f.seedBatch(t, itemID, 1, "20")

	order, err := f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("8")}},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ConfirmPayment(ctx, order.ID))
	require.Equal(t, enums.OrderStatusProcessing, f.orderStatus(t, order.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("12")))

	var release models.InventoryRelease
	require.NoError(t, f.db.First(&release, "order_id = ?", order.ID).Error)
	require.Equal(t, enums.ReleaseStatusReleased, release.Status)

	var records []models.AllocationRecord
	require.NoError(t, f.db.Where("release_id = ?", release.ID).Find(&records).Error)
	require.Len(t, records, 1)
	require.Equal(t, batchID, records[0].BatchID)
	require.True(t, records[0].Quantity.Equal(decimal.RequireFromString("8")))

	// A duplicate webhook delivery must be a no-op.
	require.NoError(t, f.svc.ConfirmPayment(ctx, order.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("12")))

	// Cancellation credits the exact batch the allocation drew from.
	require.NoError(t, f.svc.Cancel(ctx, order.ID))
	require.Equal(t, enums.OrderStatusCancelled, f.orderStatus(t, order.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("20")))

	require.NoError(t, f.db.First(&release, "id = ?", release.ID).Error)
	require.Equal(t, enums.ReleaseStatusNotReleased, release.Status)

	require.Contains(t, f.emitter.types(), enums.EventOrderCreated)
	require.Contains(t, f.emitter.types(), enums.EventOrderSettled)
	require.Contains(t, f.emitter.types(), enums.EventOrderCancelled)
}

func TestConfirmPaymentShortageLeavesOrderPending(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()

	itemID := f.seedItem(t, "0")
	productID := f.seedProduct(t, "carnitas")
	f.seedRecipeLine(t, productID, itemID, "1")
	batchID := f.seedBatch(t, itemID, 1, "20")

	order, err := f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("8")}},
	})
	require.NoError(t, err)

	// Stock evaporates between admission and settlement.
	require.NoError(t, f.db.Exec(
		"UPDATE stock_batches SET quantity_available = 5 WHERE id = ?", batchID,
	).Error)

	err = f.svc.ConfirmPayment(ctx, order.ID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())

	// The order stays pending and nothing was debited; it can settle later.
	require.Equal(t, enums.OrderStatusPending, f.orderStatus(t, order.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("5")))
	var release models.InventoryRelease
	require.NoError(t, f.db.First(&release, "order_id = ?", order.ID).Error)
	require.Equal(t, enums.ReleaseStatusPending, release.Status)
	require.Contains(t, f.emitter.types(), enums.EventOrderSettlementFailed)

	// Restock arrives; the retry settles.
	require.NoError(t, f.db.Exec(
		"UPDATE stock_batches SET quantity_available = 20 WHERE id = ?", batchID,
	).Error)
	require.NoError(t, f.svc.ConfirmPayment(ctx, order.ID))
	require.Equal(t, enums.OrderStatusProcessing, f.orderStatus(t, order.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("12")))
}

func TestCancelPendingDiscardsReleases(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()

	itemID := f.seedItem(t, "0")
	productID := f.seedProduct(t, "esquites")
	f.seedRecipeLine(t, productID, itemID, "2")
	batchID := f.seedBatch(t, itemID, 1, "10")

	order, err := f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("3")}},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, order.ID))
	require.Equal(t, enums.OrderStatusCancelled, f.orderStatus(t, order.ID))
	require.True(t, f.batchAvailable(t, batchID).Equal(decimal.RequireFromString("10")))

	var release models.InventoryRelease
	require.NoError(t, f.db.First(&release, "order_id = ?", order.ID).Error)
	require.Equal(t, enums.ReleaseStatusNotReleased, release.Status)

	// Cancelling twice is a no-op.
	require.NoError(t, f.svc.Cancel(ctx, order.ID))
}

func TestCompleteRequiresProcessing(t *testing.T) {
	t.Parallel()
	f := newOrdersFixture(t)
	ctx := context.Background()

	itemID := f.seedItem(t, "0")
	productID := f.seedProduct(t, "flan")
	f.seedRecipeLine(t, productID, itemID, "1")
	f.seedBatch(t, itemID, 1, "10")

	order, err := f.svc.CreateProductionOrder(ctx, CreateOrderInput{
		Lines: []OrderLineInput{{ProductID: productID, Quantity: decimal.RequireFromString("2")}},
	})
	require.NoError(t, err)

	err = f.svc.Complete(ctx, order.ID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	require.NoError(t, f.svc.ConfirmPayment(ctx, order.ID))
	require.NoError(t, f.svc.Complete(ctx, order.ID))
	require.Equal(t, enums.OrderStatusCompleted, f.orderStatus(t, order.ID))

	// Completed orders cannot be cancelled.
	err = f.svc.Cancel(ctx, order.ID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}
