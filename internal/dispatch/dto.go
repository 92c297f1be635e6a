package dispatch

import (
	"github.com/google/uuid"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	"github.com/cardd-labs/cardd-backend/pkg/enums"
)

// CreateRequestInput carries a new damage report into the engine.
type CreateRequestInput struct {
	UserID    uuid.UUID
	Kind      string
	Latitude  float64
	Longitude float64
	Address   string
}

// RequestResult is the intake outcome. Agent is nil when no candidate was
// selectable and the request went straight to exhausted.
type RequestResult struct {
	Request *models.ServiceRequest
	Agent   *models.Agent
}

// ResponseInput carries an agent's decision on a pending assignment. AgentID
// identifies the responder and is checked against the current assignee.
type ResponseInput struct {
	RequestID uuid.UUID
	AgentID   uuid.UUID
	Action    enums.AgentAction
}

// Outcome names the externally visible result of an agent response.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeReassigned Outcome = "reassigned"
	OutcomeExhausted  Outcome = "exhausted"
)

// ResponseResult reports the post-transition state. Agent is the new assignee
// on reassignment, nil otherwise.
type ResponseResult struct {
	Outcome Outcome
	Request *models.ServiceRequest
	Agent   *models.Agent
}
