package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cardd-labs/cardd-backend/api/responses"
	"github.com/cardd-labs/cardd-backend/api/validators"
	"github.com/cardd-labs/cardd-backend/internal/dispatch"
	"github.com/cardd-labs/cardd-backend/internal/estimation"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
)

type createEstimatePayload struct {
	RequestID string  `json:"request_id" validate:"required,uuid4"`
	Kind      string  `json:"kind" validate:"required"`
	Severity  float64 `json:"severity" validate:"min=0,max=1"`
}

type createEstimateResponse struct {
	RequestID    string `json:"request_id"`
	CostEstimate string `json:"cost_estimate"`
}

// CreateEstimate prices a damage report and attaches the amount to the request.
func CreateEstimate(estimator estimation.Estimator, svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if estimator == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "estimation service unavailable"))
			return
		}

		var payload createEstimatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := uuid.Parse(payload.RequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id"))
			return
		}

		amount, err := estimator.Estimate(r.Context(), estimation.Input{
			Kind:     payload.Kind,
			Severity: payload.Severity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AttachEstimate(r.Context(), requestID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, createEstimateResponse{
			RequestID:    updated.ID.String(),
			CostEstimate: amount.StringFixed(2),
		})
	}
}
