package requests

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/pagination"
)

type stubRepo struct {
	requests map[uuid.UUID]models.ServiceRequest
}

func (s *stubRepo) WithTx(_ *gorm.DB) Repository {
	return s
}

func (s *stubRepo) Create(_ context.Context, request *models.ServiceRequest) (*models.ServiceRequest, error) {
	s.requests[request.ID] = *request
	return request, nil
}

func (s *stubRepo) Find(_ context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &request, nil
}

func (s *stubRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return s.Find(ctx, id)
}

func (s *stubRepo) Update(_ context.Context, request *models.ServiceRequest) error {
	s.requests[request.ID] = *request
	return nil
}

func (s *stubRepo) ListForUser(_ context.Context, userID uuid.UUID, _ pagination.Params) (*Page, error) {
	page := &Page{}
	for _, request := range s.requests {
		if request.UserID == userID {
			page.Requests = append(page.Requests, request)
		}
	}
	return page, nil
}

func (s *stubRepo) ListForAgent(_ context.Context, agentID uuid.UUID, _ pagination.Params) (*Page, error) {
	page := &Page{}
	for _, request := range s.requests {
		if request.AssignedAgentID != nil && *request.AssignedAgentID == agentID {
			page.Requests = append(page.Requests, request)
		}
	}
	return page, nil
}

func newTestService(t *testing.T) (Service, *stubRepo) {
	t.Helper()
	repo := &stubRepo{requests: map[uuid.UUID]models.ServiceRequest{}}
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestGetMapsMissingRowToNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestGetReturnsStoredRequest(t *testing.T) {
	svc, repo := newTestService(t)

	id := uuid.New()
	repo.requests[id] = models.ServiceRequest{ID: id, Kind: "dent"}

	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "dent", got.Kind)
}

func TestListForUserRejectsMalformedCursor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListForUser(context.Background(), uuid.New(), pagination.Params{Cursor: "not-a-cursor"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestListForAgentRequiresAgentID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListForAgent(context.Background(), uuid.Nil, pagination.Params{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
