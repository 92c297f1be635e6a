package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/cardd-labs/cardd-backend/pkg/db/types"
	"github.com/cardd-labs/cardd-backend/pkg/enums"
)

// ServiceRequest is a damage-repair job reported by a user. The dispatch
// engine owns every mutation after creation. AttemptedAgentIDs records every
// agent the request has been offered to, in offer order; an id in it is never
// offered the same request again.
type ServiceRequest struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID            uuid.UUID           `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind              string              `gorm:"type:text;not null" json:"kind"`
	Latitude          float64             `gorm:"column:latitude;not null" json:"latitude"`
	Longitude         float64             `gorm:"column:longitude;not null" json:"longitude"`
	Address           string              `gorm:"type:text" json:"address"`
	AssignedAgentID   *uuid.UUID          `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`
	Status            enums.RequestStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	CostEstimate      *decimal.Decimal    `gorm:"type:numeric(12,2)" json:"cost_estimate,omitempty"`
	AttemptedAgentIDs dbtypes.UUIDArray   `gorm:"type:uuid[];column:attempted_agent_ids;not null;default:'{}'" json:"attempted_agent_ids"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
