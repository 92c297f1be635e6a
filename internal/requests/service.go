package requests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/pagination"
)

// Service exposes the read side of service requests. Writes go through the
// dispatch engine exclusively.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	ListForAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) (*Page, error)
}

type service struct {
	repo Repository
}

// NewService wires the request read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return request, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := validateCursor(params.Cursor); err != nil {
		return nil, err
	}
	page, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests for user")
	}
	return page, nil
}

func (s *service) ListForAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) (*Page, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if err := validateCursor(params.Cursor); err != nil {
		return nil, err
	}
	page, err := s.repo.ListForAgent(ctx, agentID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests for agent")
	}
	return page, nil
}

func validateCursor(cursor string) error {
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}
