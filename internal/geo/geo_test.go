package geo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardd-labs/cardd-backend/pkg/db/models"
)

func agentAt(id uuid.UUID, lat, lon float64) models.Agent {
	return models.Agent{
		ID:          id,
		Name:        "agent",
		Latitude:    &lat,
		Longitude:   &lon,
		IsAvailable: true,
	}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	a := Coordinate{Latitude: 18.52, Longitude: 73.85}
	b := Coordinate{Latitude: 19.07, Longitude: 72.87}

	assert.Equal(t, Distance(a, b), Distance(b, a))
	assert.Zero(t, Distance(a, a))
}

func TestDistanceKnownPair(t *testing.T) {
	// Quarter of the equatorial circumference.
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Coordinate{Latitude: 0, Longitude: 90}

	assert.InDelta(t, 10007.5, Distance(a, b), 1.0)
}

func TestCoordinateValidate(t *testing.T) {
	assert.NoError(t, Coordinate{Latitude: 90, Longitude: -180}.Validate())
	assert.Error(t, Coordinate{Latitude: 91, Longitude: 0}.Validate())
	assert.Error(t, Coordinate{Latitude: 0, Longitude: -181}.Validate())
}

func TestNearestPicksMinimalDistance(t *testing.T) {
	origin := Coordinate{Latitude: 18.52, Longitude: 73.85}
	near := agentAt(uuid.New(), 18.53, 73.86)
	far := agentAt(uuid.New(), 19.50, 74.90)

	got := Nearest(origin, []models.Agent{far, near}, nil)
	require.NotNil(t, got)
	assert.Equal(t, near.ID, got.ID)
}

func TestNearestSkipsUnavailableAndMissingCoordinates(t *testing.T) {
	origin := Coordinate{Latitude: 18.52, Longitude: 73.85}

	near := agentAt(uuid.New(), 18.53, 73.86)
	near.IsAvailable = false
	noCoord := models.Agent{ID: uuid.New(), IsAvailable: true}
	far := agentAt(uuid.New(), 19.50, 74.90)

	got := Nearest(origin, []models.Agent{near, noCoord, far}, nil)
	require.NotNil(t, got)
	assert.Equal(t, far.ID, got.ID)
}

func TestNearestHonorsExclusion(t *testing.T) {
	origin := Coordinate{Latitude: 18.52, Longitude: 73.85}
	a := agentAt(uuid.New(), 18.53, 73.86)
	b := agentAt(uuid.New(), 19.50, 74.90)

	exclude := map[uuid.UUID]struct{}{a.ID: {}}
	got := Nearest(origin, []models.Agent{a, b}, exclude)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)

	exclude[b.ID] = struct{}{}
	assert.Nil(t, Nearest(origin, []models.Agent{a, b}, exclude))
}

func TestNearestTieBreaksOnLowestID(t *testing.T) {
	origin := Coordinate{Latitude: 0, Longitude: 0}

	lowID := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	highID := uuid.MustParse("ffffffff-0000-4000-8000-000000000001")
	// Same spot, so identical distance.
	low := agentAt(lowID, 1.0, 1.0)
	high := agentAt(highID, 1.0, 1.0)

	for i := 0; i < 10; i++ {
		got := Nearest(origin, []models.Agent{high, low}, nil)
		require.NotNil(t, got)
		assert.Equal(t, lowID, got.ID)
	}
}

func TestNearestReturnsOwnedCopy(t *testing.T) {
	origin := Coordinate{Latitude: 0, Longitude: 0}
	candidates := []models.Agent{agentAt(uuid.New(), 1.0, 1.0)}

	got := Nearest(origin, candidates, nil)
	require.NotNil(t, got)

	got.Name = "mutated"
	assert.Equal(t, "agent", candidates[0].Name)
}
