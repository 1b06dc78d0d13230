package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/api/responses"
	"github.com/jmcarrillo/fogata-backend/api/validators"
	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
)

type upsertRecipeLineRequest struct {
	ProductID        uuid.UUID `json:"product_id" validate:"required"`
	IngredientItemID uuid.UUID `json:"ingredient_item_id" validate:"required"`
	QuantityPerUnit  string    `json:"quantity_per_unit" validate:"required"`
}

// UpsertRecipeLine creates or replaces one ingredient requirement of a
// product's recipe.
func UpsertRecipeLine(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload upsertRecipeLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		qty, err := decimal.NewFromString(payload.QuantityPerUnit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quantity_per_unit"))
			return
		}

		line, err := svc.UpsertRecipeLine(r.Context(), catalog.UpsertRecipeLineInput{
			ProductID:        payload.ProductID,
			IngredientItemID: payload.IngredientItemID,
			QuantityPerUnit:  qty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, line)
	}
}
