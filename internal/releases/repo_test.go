package releases

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/admission"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

func newReleasesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:releases_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS inventory_releases (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  item_id TEXT NOT NULL,
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

func TestTransitionStatusGuarded(t *testing.T) {
	t.Parallel()
	db := newReleasesDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	release := models.InventoryRelease{
		ID:       uuid.New(),
		OrderID:  &orderID,
		ItemID:   uuid.New(),
		Quantity: decimal.RequireFromString("3"),
		Status:   enums.ReleaseStatusPending,
	}
	require.NoError(t, repo.Create(ctx, &release))

	ok, err := repo.TransitionStatus(ctx, release.ID, enums.ReleaseStatusPending, enums.ReleaseStatusReleased)
	require.NoError(t, err)
	require.True(t, ok)

	// Already released: the same transition must lose.
	ok, err = repo.TransitionStatus(ctx, release.ID, enums.ReleaseStatusPending, enums.ReleaseStatusReleased)
	require.NoError(t, err)
	require.False(t, ok)

	current, err := repo.Get(ctx, release.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReleaseStatusReleased, current.Status)
}

func TestCreateForOrderAllOrNothing(t *testing.T) {
	t.Parallel()
	db := newReleasesDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, &gormTxRunner{db: db})
	require.NoError(t, err)
	ctx := context.Background()
	orderID := uuid.New()

	demands := []admission.IngredientDemand{
		{ItemID: uuid.New(), Quantity: decimal.RequireFromString("2")},
		{ItemID: uuid.New(), Quantity: decimal.RequireFromString("4.5")},
	}
	created, err := svc.CreateForOrder(ctx, orderID, demands)
	require.NoError(t, err)
	require.Len(t, created, 2)

	pending, err := svc.ListPending(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, release := range pending {
		require.Equal(t, enums.ReleaseStatusPending, release.Status)
		require.Equal(t, orderID, *release.OrderID)
	}
}

func TestCreateForOrderRollsBackOnBadDemand(t *testing.T) {
	t.Parallel()
	db := newReleasesDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, &gormTxRunner{db: db})
	require.NoError(t, err)
	ctx := context.Background()
	orderID := uuid.New()

	demands := []admission.IngredientDemand{
		{ItemID: uuid.New(), Quantity: decimal.RequireFromString("2")},
		{ItemID: uuid.New(), Quantity: decimal.Zero},
	}
	_, err = svc.CreateForOrder(ctx, orderID, demands)
	require.Error(t, err)

	remaining, err := svc.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestCreateForOrderTxSharesTransaction(t *testing.T) {
	t.Parallel()
	db := newReleasesDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, &gormTxRunner{db: db})
	require.NoError(t, err)
	ctx := context.Background()
	orderID := uuid.New()

	boom := errors.New("boom")
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, txErr := svc.CreateForOrderTx(ctx, tx, orderID, []admission.IngredientDemand{
			{ItemID: uuid.New(), Quantity: decimal.RequireFromString("1")},
		}); txErr != nil {
			return txErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	remaining, err := svc.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}
