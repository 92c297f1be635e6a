package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/internal/agents"
	"github.com/cardd-labs/cardd-backend/internal/geo"
	"github.com/cardd-labs/cardd-backend/internal/requests"
	"github.com/cardd-labs/cardd-backend/internal/users"
	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	"github.com/cardd-labs/cardd-backend/pkg/enums"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
	"github.com/cardd-labs/cardd-backend/pkg/metrics"
)

// Service is the dispatch engine. It owns every service request state
// transition after intake; nothing else mutates request rows.
type Service interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*RequestResult, error)
	HandleAgentResponse(ctx context.Context, input ResponseInput) (*ResponseResult, error)
	AttachEstimate(ctx context.Context, requestID uuid.UUID, amount decimal.Decimal) (*models.ServiceRequest, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, text string)
}

type service struct {
	requests requests.Repository
	agents   agents.Repository
	users    users.Repository
	tx       txRunner
	notifier notifier
	logg     *logger.Logger
	metrics  *metrics.DispatchMetrics
}

// NewService wires the engine. The notifier is required even though delivery
// is best-effort; a nil metrics recorder is a no-op.
func NewService(
	requestsRepo requests.Repository,
	agentsRepo agents.Repository,
	usersRepo users.Repository,
	tx txRunner,
	notif notifier,
	logg *logger.Logger,
	m *metrics.DispatchMetrics,
) (Service, error) {
	if requestsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	}
	if agentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "agents repository required")
	}
	if usersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if notif == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	return &service{
		requests: requestsRepo,
		agents:   agentsRepo,
		users:    usersRepo,
		tx:       tx,
		notifier: notif,
		logg:     logg,
		metrics:  m,
	}, nil
}

// CreateRequest validates the report, picks the nearest available agent and
// persists the request with that agent reserved, all in one transaction. With
// no selectable agent the request is created already exhausted.
func (s *service) CreateRequest(ctx context.Context, input CreateRequestInput) (*RequestResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.Kind) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request kind required")
	}
	origin := geo.Coordinate{Latitude: input.Latitude, Longitude: input.Longitude}
	if err := origin.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.Find(ctx, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	var (
		request  *models.ServiceRequest
		assigned *models.Agent
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		agentsRepo := s.agents.WithTx(tx)
		requestsRepo := s.requests.WithTx(tx)

		candidates, err := agentsRepo.ListAvailable(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available agents")
		}

		assigned = geo.Nearest(origin, candidates, nil)

		record := &models.ServiceRequest{
			UserID:            input.UserID,
			Kind:              strings.TrimSpace(input.Kind),
			Latitude:          input.Latitude,
			Longitude:         input.Longitude,
			Address:           strings.TrimSpace(input.Address),
			Status:            enums.RequestStatusExhausted,
			AttemptedAgentIDs: nil,
		}
		if assigned != nil {
			record.Status = enums.RequestStatusPending
			record.AssignedAgentID = &assigned.ID
			record.AttemptedAgentIDs = append(record.AttemptedAgentIDs, assigned.ID)
			if err := agentsRepo.SetAvailability(ctx, assigned.ID, false); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve agent")
			}
		}

		request, err = requestsRepo.Create(ctx, record)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RequestCreated(request.Status.String())
	if assigned == nil {
		s.metrics.Exhausted()
	}

	if s.logg != nil {
		ctx = s.logg.WithServiceRequestID(ctx, request.ID.String())
		if assigned != nil {
			ctx = s.logg.WithAgentID(ctx, assigned.ID.String())
		}
		s.logg.Info(ctx, "dispatch.request_created")
	}

	return &RequestResult{Request: request, Agent: assigned}, nil
}

// HandleAgentResponse applies an accept or reject from the currently assigned
// agent. The request row is locked for the duration, so concurrent responses
// serialize; losers observe the committed state and fail with a state or
// staleness error. The acceptance notification goes out only after commit.
func (s *service) HandleAgentResponse(ctx context.Context, input ResponseInput) (*ResponseResult, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action must be accept or reject").
			WithDetails(map[string]any{"action": input.Action.String()})
	}

	var (
		result       ResponseResult
		acceptedBy   *models.Agent
		notifyUserID uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		requestsRepo := s.requests.WithTx(tx)
		agentsRepo := s.agents.WithTx(tx)

		request, err := requestsRepo.FindForUpdate(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
		}

		if request.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request already finalized").
				WithDetails(map[string]any{"status": request.Status.String()})
		}
		if request.AssignedAgentID == nil || *request.AssignedAgentID != input.AgentID {
			return pkgerrors.New(pkgerrors.CodeStaleResponse, "agent is not the current assignee")
		}

		switch input.Action {
		case enums.AgentActionAccept:
			request.Status = enums.RequestStatusAccepted
			if err := requestsRepo.Update(ctx, request); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept request")
			}
			agent, err := agentsRepo.Find(ctx, input.AgentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepting agent")
			}
			acceptedBy = agent
			notifyUserID = request.UserID
			result = ResponseResult{Outcome: OutcomeAccepted, Request: request}
			return nil

		case enums.AgentActionReject:
			return s.reassign(ctx, requestsRepo, agentsRepo, request, input.AgentID, &result)

		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "action must be accept or reject")
		}
	})
	if err != nil {
		return nil, err
	}

	if acceptedBy != nil {
		text := fmt.Sprintf(
			"Your request was accepted by %s (%s). Contact: %s.",
			acceptedBy.Name, acceptedBy.Shop, acceptedBy.Phone,
		)
		s.notifier.Notify(ctx, notifyUserID, text)
	}

	if s.logg != nil {
		ctx = s.logg.WithServiceRequestID(ctx, input.RequestID.String())
		ctx = s.logg.WithAgentID(ctx, input.AgentID.String())
		ctx = s.logg.WithField(ctx, "outcome", string(result.Outcome))
		s.logg.Info(ctx, "dispatch.response_handled")
	}

	return &result, nil
}

// reassign runs the fallback chain after a reject: release the decliner, pick
// the nearest agent not yet attempted, and either hand the request over or
// exhaust it. Runs inside the caller's transaction with the row lock held.
func (s *service) reassign(
	ctx context.Context,
	requestsRepo requests.Repository,
	agentsRepo agents.Repository,
	request *models.ServiceRequest,
	decliningAgentID uuid.UUID,
	result *ResponseResult,
) error {
	if err := agentsRepo.SetAvailability(ctx, decliningAgentID, true); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release agent")
	}

	// The rejected state is only ever visible inside this transaction; the
	// commit always carries pending or exhausted.
	request.Status = enums.RequestStatusRejected
	request.AssignedAgentID = nil
	if err := requestsRepo.Update(ctx, request); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark rejected")
	}

	candidates, err := agentsRepo.ListAvailable(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available agents")
	}
	origin := geo.Coordinate{Latitude: request.Latitude, Longitude: request.Longitude}
	next := geo.Nearest(origin, candidates, request.AttemptedAgentIDs.AsSet())

	if next == nil {
		request.Status = enums.RequestStatusExhausted
		if err := requestsRepo.Update(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exhaust request")
		}
		s.metrics.Exhausted()
		*result = ResponseResult{Outcome: OutcomeExhausted, Request: request}
		return nil
	}

	request.Status = enums.RequestStatusPending
	request.AssignedAgentID = &next.ID
	if !request.AttemptedAgentIDs.Contains(next.ID) {
		request.AttemptedAgentIDs = append(request.AttemptedAgentIDs, next.ID)
	}
	if err := agentsRepo.SetAvailability(ctx, next.ID, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve agent")
	}
	if err := requestsRepo.Update(ctx, request); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign request")
	}
	s.metrics.Reassigned()
	*result = ResponseResult{Outcome: OutcomeReassigned, Request: request, Agent: next}
	return nil
}

// AttachEstimate writes the assessed repair cost onto a request that has not
// reached a terminal state.
func (s *service) AttachEstimate(ctx context.Context, requestID uuid.UUID, amount decimal.Decimal) (*models.ServiceRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimate must not be negative")
	}

	var request *models.ServiceRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		requestsRepo := s.requests.WithTx(tx)

		found, err := requestsRepo.FindForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
		}
		if found.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request already finalized").
				WithDetails(map[string]any{"status": found.Status.String()})
		}

		found.CostEstimate = &amount
		if err := requestsRepo.Update(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach estimate")
		}
		request = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}
