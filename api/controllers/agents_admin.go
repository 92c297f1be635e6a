package controllers

import (
	"net/http"

	"github.com/cardd-labs/cardd-backend/api/responses"
	"github.com/cardd-labs/cardd-backend/api/validators"
	"github.com/cardd-labs/cardd-backend/internal/agents"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
)

type createAgentPayload struct {
	Email     string   `json:"email" validate:"required,email"`
	Name      string   `json:"name" validate:"required"`
	Shop      string   `json:"shop,omitempty"`
	City      string   `json:"city,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

type agentAvailabilityPayload struct {
	Available *bool `json:"available" validate:"required"`
}

// AdminAgentCreate onboards a workshop agent.
func AdminAgentCreate(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agents service unavailable"))
			return
		}

		var payload createAgentPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agent, err := svc.Create(r.Context(), agents.CreateInput{
			Email:     payload.Email,
			Name:      payload.Name,
			Shop:      payload.Shop,
			City:      payload.City,
			Phone:     payload.Phone,
			Latitude:  payload.Latitude,
			Longitude: payload.Longitude,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, agent)
	}
}

// AdminAgentList returns every registered agent.
func AdminAgentList(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agents service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminAgentAvailability flips an agent's availability flag from the ops side.
func AdminAgentAvailability(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agents service unavailable"))
			return
		}

		agentID, err := parseUUIDParam(r, "agentId", "agent id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agentAvailabilityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetAvailability(r.Context(), agentID, *payload.Available); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"available": *payload.Available})
	}
}
