package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/pkg/db/models"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
)

// RecipeComponent is one resolved ingredient requirement per unit of product.
type RecipeComponent struct {
	ItemID          uuid.UUID       `json:"item_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// Service exposes catalog reads plus the recipe upsert.
type Service interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	ResolveRecipe(ctx context.Context, productID uuid.UUID) ([]RecipeComponent, error)
	UpsertRecipeLine(ctx context.Context, input UpsertRecipeLineInput) (*models.RecipeLine, error)
	ListBelowRestock(ctx context.Context) ([]BelowRestockRow, error)
}

// UpsertRecipeLineInput carries one ingredient requirement of a product.
type UpsertRecipeLineInput struct {
	ProductID        uuid.UUID       `json:"product_id"`
	IngredientItemID uuid.UUID       `json:"ingredient_item_id"`
	QuantityPerUnit  decimal.Decimal `json:"quantity_per_unit"`
}

type service struct {
	repo Repository
}

// NewService wires the catalog service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, err
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListItems(ctx)
}

// ResolveRecipe returns the bill of ingredients for a product. A product with
// no recipe lines is a hard error: production orders must be rejected, never
// silently skipped.
func (s *service) ResolveRecipe(ctx context.Context, productID uuid.UUID) ([]RecipeComponent, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	lines, err := s.repo.ListRecipeLines(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeRecipeNotFound, "product has no recipe").
			WithDetails(map[string]any{"product_id": productID.String()})
	}

	components := make([]RecipeComponent, 0, len(lines))
	for _, line := range lines {
		components = append(components, RecipeComponent{
			ItemID:          line.IngredientItemID,
			QuantityPerUnit: line.QuantityPerUnit,
		})
	}
	return components, nil
}

func (s *service) UpsertRecipeLine(ctx context.Context, input UpsertRecipeLineInput) (*models.RecipeLine, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.IngredientItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient item id is required")
	}
	if input.QuantityPerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity per unit must not be negative")
	}

	if _, err := s.repo.GetProduct(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if _, err := s.repo.GetItem(ctx, input.IngredientItemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ingredient item not found")
		}
		return nil, err
	}

	line := &models.RecipeLine{
		ID:               uuid.New(),
		ProductID:        input.ProductID,
		IngredientItemID: input.IngredientItemID,
		QuantityPerUnit:  input.QuantityPerUnit,
	}
	if err := s.repo.UpsertRecipeLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

func (s *service) ListBelowRestock(ctx context.Context) ([]BelowRestockRow, error) {
	return s.repo.ListBelowRestock(ctx)
}
