package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/api/responses"
	"github.com/jmcarrillo/fogata-backend/api/validators"
	purchasesvc "github.com/jmcarrillo/fogata-backend/internal/purchases"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
)

type createPurchaseRequest struct {
	ItemID         uuid.UUID  `json:"item_id" validate:"required"`
	Supplier       string     `json:"supplier" validate:"required"`
	UsefulQuantity string     `json:"useful_quantity" validate:"required"`
	PurchasedAt    *time.Time `json:"purchased_at,omitempty"`
}

type addBatchRequest struct {
	Quantity string `json:"quantity" validate:"required"`
}

// CreatePurchase registers an acquisition of raw material for one item.
func CreatePurchase(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		useful, err := decimal.NewFromString(payload.UsefulQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid useful_quantity"))
			return
		}

		input := purchasesvc.CreatePurchaseInput{
			ItemID:         payload.ItemID,
			Supplier:       validators.SanitizeString(payload.Supplier, 120),
			UsefulQuantity: useful,
		}
		if payload.PurchasedAt != nil {
			input.PurchasedAt = *payload.PurchasedAt
		}

		purchase, err := svc.CreatePurchase(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}

func ListPurchases(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchases, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchases)
	}
}

func GetPurchase(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchaseID, err := uuid.Parse(chi.URLParam(r, "purchaseId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase id"))
			return
		}
		purchase, err := svc.Get(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// AddBatch slices part of a purchase into a sequenced stock batch. The sum of
// a purchase's batches never exceeds its useful quantity.
func AddBatch(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchaseID, err := uuid.Parse(chi.URLParam(r, "purchaseId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase id"))
			return
		}

		var payload addBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		qty, err := decimal.NewFromString(payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quantity"))
			return
		}

		batch, err := svc.AddBatch(r.Context(), purchaseID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, batch)
	}
}
