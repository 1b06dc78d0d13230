package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/api/responses"
	"github.com/jmcarrillo/fogata-backend/api/validators"
	productionsvc "github.com/jmcarrillo/fogata-backend/internal/production"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
)

type createProductionRunRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  string    `json:"quantity" validate:"required"`
}

// CreateProductionRun manufactures finished goods synchronously: ingredients
// come out of the ledger and the product's stock is credited in the same
// transaction.
func CreateProductionRun(svc productionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductionRunRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		qty, err := decimal.NewFromString(payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quantity"))
			return
		}

		run, err := svc.Run(r.Context(), payload.ProductID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, run)
	}
}

func ListProductionRuns(svc productionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, runs)
	}
}

func GetProductionRun(svc productionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := runIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		run, err := svc.Get(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, run)
	}
}

// UndoProductionRun walks a completed run back: produced stock is debited and
// the consumed ingredients are credited to their originating batches.
func UndoProductionRun(svc productionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := runIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Undo(r.Context(), runID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func runIDParam(r *http.Request) (uuid.UUID, error) {
	runID, err := uuid.Parse(chi.URLParam(r, "runId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid production run id")
	}
	return runID, nil
}
