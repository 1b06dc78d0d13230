package admission

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
)

// ProductDemand is one (product, quantity) pair of an incoming order.
type ProductDemand struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// IngredientDemand is the aggregated ingredient requirement of a demand list.
type IngredientDemand struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Shortage describes one ingredient that cannot be drawn without eating into
// its restock buffer.
type Shortage struct {
	ItemID                uuid.UUID       `json:"item_id"`
	Required              decimal.Decimal `json:"required"`
	AvailableAboveRestock decimal.Decimal `json:"available_above_restock"`
	Shortfall             decimal.Decimal `json:"shortfall"`
}

// Result is the outcome of an admission check. Demands carries the expanded
// per-ingredient requirements so the caller can create reservations without
// resolving recipes a second time.
type Result struct {
	OK        bool               `json:"ok"`
	Demands   []IngredientDemand `json:"demands"`
	Shortages []Shortage         `json:"shortages,omitempty"`
}

// Service verifies that new demand can be satisfied from stock sitting above
// each ingredient's restock level.
type Service interface {
	Check(ctx context.Context, demand []ProductDemand) (*Result, error)
}

// CatalogReader is the slice of the catalog surface admission needs.
type CatalogReader interface {
	ResolveRecipe(ctx context.Context, productID uuid.UUID) ([]catalog.RecipeComponent, error)
}

// ItemReader exposes restock levels.
type ItemReader interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error)
}

// StockReader exposes total open stock per item.
type StockReader interface {
	TotalAvailable(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	recipes CatalogReader
	items   ItemReader
	stock   StockReader
}

// NewService wires the admission checker with its read-only collaborators.
func NewService(recipes CatalogReader, items ItemReader, stock StockReader) (Service, error) {
	if recipes == nil {
		return nil, fmt.Errorf("recipe resolver required")
	}
	if items == nil {
		return nil, fmt.Errorf("item reader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	return &service{recipes: recipes, items: items, stock: stock}, nil
}

// Check expands the demand list into ingredient requirements and compares each
// against max(0, total_available - restock_level). Any missing recipe fails
// the whole check; any shortage marks the result not OK. Partial admission is
// never allowed, so the caller rejects the order on either signal.
func (s *service) Check(ctx context.Context, demand []ProductDemand) (*Result, error) {
	if len(demand) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "demand list is empty")
	}

	required := map[uuid.UUID]decimal.Decimal{}
	for _, d := range demand {
		if d.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if !d.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "demand quantity must be positive")
		}

		components, err := s.recipes.ResolveRecipe(ctx, d.ProductID)
		if err != nil {
			return nil, err
		}
		for _, component := range components {
			need := d.Quantity.Mul(component.QuantityPerUnit)
			if !need.IsPositive() {
				continue
			}
			required[component.ItemID] = required[component.ItemID].Add(need)
		}
	}

	itemIDs := make([]uuid.UUID, 0, len(required))
	for itemID := range required {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i].String() < itemIDs[j].String() })

	result := &Result{OK: true}
	for _, itemID := range itemIDs {
		need := required[itemID]
		item, err := s.items.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		total, err := s.stock.TotalAvailable(ctx, itemID)
		if err != nil {
			return nil, err
		}

		aboveRestock := total.Sub(item.RestockLevel)
		if aboveRestock.IsNegative() {
			aboveRestock = decimal.Zero
		}

		result.Demands = append(result.Demands, IngredientDemand{ItemID: itemID, Quantity: need})
		if need.GreaterThan(aboveRestock) {
			result.OK = false
			result.Shortages = append(result.Shortages, Shortage{
				ItemID:                itemID,
				Required:              need,
				AvailableAboveRestock: aboveRestock,
				Shortfall:             need.Sub(aboveRestock),
			})
		}
	}

	return result, nil
}
