package geo

import (
	"bytes"
	"math"

	"github.com/google/uuid"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Coordinate is an immutable latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate is within the valid degree ranges.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude out of range").
			WithDetails(map[string]any{"latitude": c.Latitude})
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "longitude out of range").
			WithDetails(map[string]any{"longitude": c.Longitude})
	}
	return nil
}

// Distance returns the haversine great-circle distance between a and b in
// kilometers. Symmetric; zero when a == b.
func Distance(a, b Coordinate) float64 {
	lat1 := degToRad(a.Latitude)
	lat2 := degToRad(b.Latitude)
	dLat := degToRad(b.Latitude - a.Latitude)
	dLon := degToRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Nearest returns a copy of the candidate closest to origin, skipping agents
// without a coordinate, unavailable agents, and ids in exclude. Equidistant
// candidates tie-break on the lowest id (bytewise) so repeated calls are
// deterministic. Returns nil when no candidate qualifies.
func Nearest(origin Coordinate, candidates []models.Agent, exclude map[uuid.UUID]struct{}) *models.Agent {
	var best *models.Agent
	bestDist := math.Inf(1)

	for i := range candidates {
		agent := &candidates[i]
		if !agent.HasCoordinate() || !agent.IsAvailable {
			continue
		}
		if _, skip := exclude[agent.ID]; skip {
			continue
		}

		dist := Distance(origin, Coordinate{Latitude: *agent.Latitude, Longitude: *agent.Longitude})
		switch {
		case dist < bestDist:
			best = agent
			bestDist = dist
		case dist == bestDist && best != nil && bytes.Compare(agent.ID[:], best.ID[:]) < 0:
			best = agent
		}
	}

	if best == nil {
		return nil
	}
	copied := *best
	return &copied
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
