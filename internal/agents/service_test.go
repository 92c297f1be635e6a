package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
)

type stubRepo struct {
	agents map[uuid.UUID]models.Agent
}

func newStubRepo() *stubRepo {
	return &stubRepo{agents: map[uuid.UUID]models.Agent{}}
}

func (s *stubRepo) WithTx(_ *gorm.DB) Repository { return s }

func (s *stubRepo) ListAll(_ context.Context) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, agent)
	}
	return out, nil
}

func (s *stubRepo) ListAvailable(_ context.Context) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		if agent.IsAvailable {
			out = append(out, agent)
		}
	}
	return out, nil
}

func (s *stubRepo) Find(_ context.Context, id uuid.UUID) (*models.Agent, error) {
	agent, ok := s.agents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &agent, nil
}

func (s *stubRepo) Create(_ context.Context, agent *models.Agent) (*models.Agent, error) {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	s.agents[agent.ID] = *agent
	return agent, nil
}

func (s *stubRepo) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	agent, ok := s.agents[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	agent.IsAvailable = available
	s.agents[id] = agent
	return nil
}

func TestCreateNormalizesAndDefaultsAvailable(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	lat, lon := 18.52, 73.85
	agent, err := svc.Create(context.Background(), CreateInput{
		Email:     "  Asha@Example.COM ",
		Name:      " Asha ",
		Shop:      "Asha Garage",
		City:      "Pune",
		Phone:     "+91-90000-00001",
		Latitude:  &lat,
		Longitude: &lon,
	})
	require.NoError(t, err)

	assert.Equal(t, "asha@example.com", agent.Email)
	assert.Equal(t, "Asha", agent.Name)
	assert.True(t, agent.IsAvailable)
	require.NotNil(t, agent.Latitude)
	assert.Equal(t, lat, *agent.Latitude)
}

func TestCreateRejectsHalfCoordinate(t *testing.T) {
	svc, err := NewService(newStubRepo())
	require.NoError(t, err)

	lat := 18.52
	_, err = svc.Create(context.Background(), CreateInput{
		Email:    "asha@example.com",
		Name:     "Asha",
		Latitude: &lat,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateRejectsOutOfRangeCoordinate(t *testing.T) {
	svc, err := NewService(newStubRepo())
	require.NoError(t, err)

	lat, lon := 95.0, 73.85
	_, err = svc.Create(context.Background(), CreateInput{
		Email:     "asha@example.com",
		Name:      "Asha",
		Latitude:  &lat,
		Longitude: &lon,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSetAvailabilityUnknownAgent(t *testing.T) {
	svc, err := NewService(newStubRepo())
	require.NoError(t, err)

	err = svc.SetAvailability(context.Background(), uuid.New(), false)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
