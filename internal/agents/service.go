package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/internal/geo"
	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
)

// Service defines the administrative agent operations. The dispatch engine
// consumes the Repository directly; this surface exists for the ops side
// (onboarding workshops, flipping availability).
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Agent, error)
	List(ctx context.Context) ([]models.Agent, error)
	SetAvailability(ctx context.Context, agentID uuid.UUID, available bool) error
}

type service struct {
	repo Repository
}

// CreateInput captures the fields required to onboard an agent.
type CreateInput struct {
	Email     string
	Name      string
	Shop      string
	City      string
	Phone     string
	Latitude  *float64
	Longitude *float64
}

// NewService wires agent admin dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "agents repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Agent, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent email required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent name required")
	}

	// Coordinates are optional but must arrive as a pair.
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be provided together")
	}
	if input.Latitude != nil {
		coord := geo.Coordinate{Latitude: *input.Latitude, Longitude: *input.Longitude}
		if err := coord.Validate(); err != nil {
			return nil, err
		}
	}

	agent := &models.Agent{
		Email:       email,
		Name:        strings.TrimSpace(input.Name),
		Shop:        strings.TrimSpace(input.Shop),
		City:        strings.TrimSpace(input.City),
		Phone:       strings.TrimSpace(input.Phone),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		IsAvailable: true,
	}

	created, err := s.repo.Create(ctx, agent)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create agent")
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]models.Agent, error) {
	agents, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agents")
	}
	return agents, nil
}

func (s *service) SetAvailability(ctx context.Context, agentID uuid.UUID, available bool) error {
	if agentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if err := s.repo.SetAvailability(ctx, agentID, available); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "agent not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agent availability")
	}
	return nil
}
