package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	"github.com/cardd-labs/cardd-backend/pkg/pagination"
)

// Page is one cursor-paginated slice of request history, newest first.
type Page struct {
	Requests   []models.ServiceRequest `json:"requests"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// Repository persists service requests. List methods return owned value
// copies; callers never receive live ORM back-references.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ServiceRequest) (*models.ServiceRequest, error)
	Find(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	Update(ctx context.Context, request *models.ServiceRequest) error
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	ListForAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) (*Page, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a service request repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ServiceRequest) (*models.ServiceRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	var request models.ServiceRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// FindForUpdate loads the request under a row lock. Only meaningful inside a
// transaction; response handling relies on it to serialize concurrent
// accept/reject calls for the same request.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	var request models.ServiceRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Update(ctx context.Context, request *models.ServiceRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	return r.listPage(query, params)
}

func (r *repository) ListForAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) (*Page, error) {
	query := r.db.WithContext(ctx).Where("assigned_agent_id = ?", agentID)
	return r.listPage(query, params)
}

func (r *repository) listPage(query *gorm.DB, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.ServiceRequest
	err = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page := &Page{Requests: rows}
	if len(rows) > limit {
		page.Requests = rows[:limit]
		last := page.Requests[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
