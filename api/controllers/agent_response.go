package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cardd-labs/cardd-backend/api/responses"
	"github.com/cardd-labs/cardd-backend/internal/dispatch"
	"github.com/cardd-labs/cardd-backend/pkg/enums"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
)

type agentResponseResult struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// AgentRespond applies an agent's accept or reject decision on an assignment.
func AgentRespond(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		agentID, err := parseUUIDParam(r, "agentId", "agent id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := parseUUIDParam(r, "requestId", "request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action := enums.AgentAction(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "action"))))

		result, err := svc.HandleAgentResponse(r.Context(), dispatch.ResponseInput{
			RequestID: requestID,
			AgentID:   agentID,
			Action:    action,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := agentResponseResult{Status: result.Request.Status.String()}
		switch result.Outcome {
		case dispatch.OutcomeAccepted:
			out.Message = "request accepted"
		case dispatch.OutcomeReassigned:
			out.Message = "request reassigned to the next nearest agent"
		case dispatch.OutcomeExhausted:
			out.Message = "no further agents available"
		}
		responses.WriteSuccess(w, out)
	}
}
