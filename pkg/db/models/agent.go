package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a field worker who can be dispatched to a service request. Latitude
// and longitude are nullable as a pair; an agent without a coordinate is never
// selectable. IsAvailable doubles as the dispatch reservation flag: the engine
// clears it while a request is pending on the agent and restores it on reject.
type Agent struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email       string    `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Shop        string    `gorm:"type:text;not null" json:"shop"`
	City        string    `gorm:"type:text;not null" json:"city"`
	Phone       string    `gorm:"type:text;not null" json:"phone"`
	Latitude    *float64  `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude   *float64  `gorm:"column:longitude" json:"longitude,omitempty"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true" json:"is_available"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// HasCoordinate reports whether both halves of the coordinate are present.
func (a Agent) HasCoordinate() bool {
	return a.Latitude != nil && a.Longitude != nil
}
