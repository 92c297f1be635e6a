package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/internal/agents"
	"github.com/cardd-labs/cardd-backend/internal/requests"
	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	"github.com/cardd-labs/cardd-backend/pkg/enums"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/metrics"
	"github.com/cardd-labs/cardd-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubNotifier struct {
	userIDs  []uuid.UUID
	messages []string
}

func (s *stubNotifier) Notify(_ context.Context, userID uuid.UUID, text string) {
	s.userIDs = append(s.userIDs, userID)
	s.messages = append(s.messages, text)
}

type stubUsersRepo struct {
	users map[uuid.UUID]models.User
}

func (s *stubUsersRepo) Find(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (s *stubUsersRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubAgentsRepo struct {
	agents map[uuid.UUID]models.Agent
}

func (s *stubAgentsRepo) WithTx(_ *gorm.DB) agents.Repository { return s }

func (s *stubAgentsRepo) ListAll(_ context.Context) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, agent)
	}
	return out, nil
}

func (s *stubAgentsRepo) ListAvailable(_ context.Context) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		if agent.IsAvailable {
			out = append(out, agent)
		}
	}
	return out, nil
}

func (s *stubAgentsRepo) Find(_ context.Context, id uuid.UUID) (*models.Agent, error) {
	agent, ok := s.agents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &agent, nil
}

func (s *stubAgentsRepo) Create(_ context.Context, agent *models.Agent) (*models.Agent, error) {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	s.agents[agent.ID] = *agent
	return agent, nil
}

func (s *stubAgentsRepo) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	agent, ok := s.agents[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	agent.IsAvailable = available
	s.agents[id] = agent
	return nil
}

type stubRequestsRepo struct {
	requests map[uuid.UUID]models.ServiceRequest
}

func (s *stubRequestsRepo) WithTx(_ *gorm.DB) requests.Repository { return s }

func (s *stubRequestsRepo) Create(_ context.Context, request *models.ServiceRequest) (*models.ServiceRequest, error) {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	s.requests[request.ID] = *request
	return request, nil
}

func (s *stubRequestsRepo) Find(_ context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &request, nil
}

func (s *stubRequestsRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return s.Find(ctx, id)
}

func (s *stubRequestsRepo) Update(_ context.Context, request *models.ServiceRequest) error {
	if _, ok := s.requests[request.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.requests[request.ID] = *request
	return nil
}

func (s *stubRequestsRepo) ListForUser(_ context.Context, userID uuid.UUID, _ pagination.Params) (*requests.Page, error) {
	page := &requests.Page{}
	for _, request := range s.requests {
		if request.UserID == userID {
			page.Requests = append(page.Requests, request)
		}
	}
	return page, nil
}

func (s *stubRequestsRepo) ListForAgent(_ context.Context, agentID uuid.UUID, _ pagination.Params) (*requests.Page, error) {
	page := &requests.Page{}
	for _, request := range s.requests {
		if request.AssignedAgentID != nil && *request.AssignedAgentID == agentID {
			page.Requests = append(page.Requests, request)
		}
	}
	return page, nil
}

type fixture struct {
	service   Service
	users     *stubUsersRepo
	agents    *stubAgentsRepo
	requests  *stubRequestsRepo
	notifier  *stubNotifier
	userID    uuid.UUID
	originLat float64
	originLon float64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	usersRepo := &stubUsersRepo{users: map[uuid.UUID]models.User{}}
	agentsRepo := &stubAgentsRepo{agents: map[uuid.UUID]models.Agent{}}
	requestsRepo := &stubRequestsRepo{requests: map[uuid.UUID]models.ServiceRequest{}}
	notif := &stubNotifier{}

	svc, err := NewService(
		requestsRepo, agentsRepo, usersRepo,
		stubTxRunner{}, notif, nil, metrics.NewDispatchMetrics(nil),
	)
	require.NoError(t, err)

	userID := uuid.New()
	usersRepo.users[userID] = models.User{ID: userID, Email: "driver@example.com", Name: "Driver"}

	return &fixture{
		service:   svc,
		users:     usersRepo,
		agents:    agentsRepo,
		requests:  requestsRepo,
		notifier:  notif,
		userID:    userID,
		originLat: 18.52,
		originLon: 73.85,
	}
}

func (f *fixture) addAgent(name string, lat, lon float64) uuid.UUID {
	id := uuid.New()
	f.agents.agents[id] = models.Agent{
		ID:          id,
		Email:       name + "@example.com",
		Name:        name,
		Shop:        name + " Garage",
		City:        "Pune",
		Phone:       fmt.Sprintf("+91-90000-0000%d", len(f.agents.agents)),
		Latitude:    &lat,
		Longitude:   &lon,
		IsAvailable: true,
	}
	return id
}

func (f *fixture) createRequest(t *testing.T) *RequestResult {
	t.Helper()
	result, err := f.service.CreateRequest(context.Background(), CreateRequestInput{
		UserID:    f.userID,
		Kind:      "dent",
		Latitude:  f.originLat,
		Longitude: f.originLon,
		Address:   "FC Road, Pune",
	})
	require.NoError(t, err)
	return result
}

func TestCreateRequestAssignsNearestAndReserves(t *testing.T) {
	f := newFixture(t)
	nearID := f.addAgent("Asha", 18.53, 73.86)
	f.addAgent("Bodhi", 19.20, 73.00)

	result := f.createRequest(t)

	require.NotNil(t, result.Agent)
	assert.Equal(t, nearID, result.Agent.ID)
	assert.Equal(t, enums.RequestStatusPending, result.Request.Status)
	require.NotNil(t, result.Request.AssignedAgentID)
	assert.Equal(t, nearID, *result.Request.AssignedAgentID)
	assert.Equal(t, []uuid.UUID{nearID}, []uuid.UUID(result.Request.AttemptedAgentIDs))

	assert.False(t, f.agents.agents[nearID].IsAvailable, "assigned agent must be reserved")
	assert.Empty(t, f.notifier.messages, "intake must not notify")
}

func TestCreateRequestNoAgentsGoesExhausted(t *testing.T) {
	f := newFixture(t)

	result := f.createRequest(t)

	assert.Nil(t, result.Agent)
	assert.Equal(t, enums.RequestStatusExhausted, result.Request.Status)
	assert.Nil(t, result.Request.AssignedAgentID)
	assert.Empty(t, result.Request.AttemptedAgentIDs)
	assert.Empty(t, f.notifier.messages)
}

func TestCreateRequestUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.addAgent("Asha", 18.53, 73.86)

	_, err := f.service.CreateRequest(context.Background(), CreateRequestInput{
		UserID:    uuid.New(),
		Kind:      "dent",
		Latitude:  f.originLat,
		Longitude: f.originLon,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCreateRequestInvalidCoordinate(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateRequest(context.Background(), CreateRequestInput{
		UserID:    f.userID,
		Kind:      "dent",
		Latitude:  94.2,
		Longitude: 73.85,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAcceptFinalizesAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	agentID := f.addAgent("Asha", 18.53, 73.86)
	created := f.createRequest(t)

	result, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   agentID,
		Action:    enums.AgentActionAccept,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAccepted, result.Outcome)
	assert.Equal(t, enums.RequestStatusAccepted, result.Request.Status)
	require.NotNil(t, result.Request.AssignedAgentID)
	assert.Equal(t, agentID, *result.Request.AssignedAgentID)

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, f.userID, f.notifier.userIDs[0])
	assert.Contains(t, f.notifier.messages[0], "Asha")
	assert.Contains(t, f.notifier.messages[0], "Asha Garage")
	assert.Contains(t, f.notifier.messages[0], f.agents.agents[agentID].Phone)

	assert.False(t, f.agents.agents[agentID].IsAvailable, "accepted agent stays reserved")
}

func TestResponseOnFinalizedRequestConflicts(t *testing.T) {
	f := newFixture(t)
	agentID := f.addAgent("Asha", 18.53, 73.86)
	created := f.createRequest(t)

	_, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   agentID,
		Action:    enums.AgentActionAccept,
	})
	require.NoError(t, err)

	_, err = f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   agentID,
		Action:    enums.AgentActionReject,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Len(t, f.notifier.messages, 1, "no second notification")
}

func TestResponseFromNonAssigneeIsStale(t *testing.T) {
	f := newFixture(t)
	f.addAgent("Asha", 18.53, 73.86)
	otherID := f.addAgent("Bodhi", 19.20, 73.00)
	created := f.createRequest(t)

	_, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   otherID,
		Action:    enums.AgentActionAccept,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStaleResponse, pkgerrors.As(err).Code())
	assert.Empty(t, f.notifier.messages)
}

func TestResponseUnknownRequest(t *testing.T) {
	f := newFixture(t)
	agentID := f.addAgent("Asha", 18.53, 73.86)

	_, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: uuid.New(),
		AgentID:   agentID,
		Action:    enums.AgentActionAccept,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestResponseInvalidAction(t *testing.T) {
	f := newFixture(t)
	agentID := f.addAgent("Asha", 18.53, 73.86)
	created := f.createRequest(t)

	_, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   agentID,
		Action:    enums.AgentAction("maybe"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestRejectReassignsToNextNearest(t *testing.T) {
	f := newFixture(t)
	firstID := f.addAgent("Asha", 18.53, 73.86)
	secondID := f.addAgent("Bodhi", 18.60, 73.90)
	created := f.createRequest(t)
	require.Equal(t, firstID, *created.Request.AssignedAgentID)

	result, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   firstID,
		Action:    enums.AgentActionReject,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeReassigned, result.Outcome)
	assert.Equal(t, enums.RequestStatusPending, result.Request.Status)
	require.NotNil(t, result.Request.AssignedAgentID)
	assert.Equal(t, secondID, *result.Request.AssignedAgentID)
	assert.Equal(t, []uuid.UUID{firstID, secondID}, []uuid.UUID(result.Request.AttemptedAgentIDs))

	assert.True(t, f.agents.agents[firstID].IsAvailable, "decliner released")
	assert.False(t, f.agents.agents[secondID].IsAvailable, "new assignee reserved")
	assert.Empty(t, f.notifier.messages, "reassignment must not notify")
}

func TestRejectionChainExhausts(t *testing.T) {
	f := newFixture(t)
	firstID := f.addAgent("Asha", 18.53, 73.86)
	secondID := f.addAgent("Bodhi", 18.60, 73.90)
	created := f.createRequest(t)

	result, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   firstID,
		Action:    enums.AgentActionReject,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeReassigned, result.Outcome)

	result, err = f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   secondID,
		Action:    enums.AgentActionReject,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Equal(t, enums.RequestStatusExhausted, result.Request.Status)
	assert.Nil(t, result.Request.AssignedAgentID)
	assert.Equal(t, []uuid.UUID{firstID, secondID}, []uuid.UUID(result.Request.AttemptedAgentIDs),
		"attempted set grows once per agent, no duplicates")

	assert.True(t, f.agents.agents[firstID].IsAvailable)
	assert.True(t, f.agents.agents[secondID].IsAvailable)
	assert.Empty(t, f.notifier.messages, "exhaustion is a status, not a notification")

	// The attempted set keeps both agents out even though they are available
	// again, so another reject cycle cannot restart the chain.
	_, err = f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   firstID,
		Action:    enums.AgentActionReject,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestAttachEstimate(t *testing.T) {
	f := newFixture(t)
	f.addAgent("Asha", 18.53, 73.86)
	created := f.createRequest(t)

	amount := decimal.RequireFromString("120.50")
	updated, err := f.service.AttachEstimate(context.Background(), created.Request.ID, amount)
	require.NoError(t, err)
	require.NotNil(t, updated.CostEstimate)
	assert.True(t, updated.CostEstimate.Equal(amount))
}

func TestAttachEstimateOnFinalizedRequestConflicts(t *testing.T) {
	f := newFixture(t)
	agentID := f.addAgent("Asha", 18.53, 73.86)
	created := f.createRequest(t)

	_, err := f.service.HandleAgentResponse(context.Background(), ResponseInput{
		RequestID: created.Request.ID,
		AgentID:   agentID,
		Action:    enums.AgentActionAccept,
	})
	require.NoError(t, err)

	_, err = f.service.AttachEstimate(context.Background(), created.Request.ID, decimal.NewFromInt(80))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestAttachEstimateNegativeAmount(t *testing.T) {
	f := newFixture(t)
	f.addAgent("Asha", 18.53, 73.86)
	created := f.createRequest(t)

	_, err := f.service.AttachEstimate(context.Background(), created.Request.ID, decimal.NewFromInt(-10))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
