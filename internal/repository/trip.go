package repository

import (
	"context"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// HostedTripRepository defines the persistence operations for hosted trips.
type HostedTripRepository interface {
	// Create persists a new hosted trip.
	Create(ctx context.Context, trip *domain.HostedTrip) error

	// GetByID retrieves a hosted trip by ID.
	GetByID(ctx context.Context, id string) (*domain.HostedTrip, error)

	// UpdateState records the start or end of a hosted trip with its position.
	// STARTED only applies to a trip that has not started; ENDED only to a
	// started trip that has not ended. Returns ErrConflict otherwise.
	UpdateState(ctx context.Context, id string, state domain.HostedTripState, at time.Time, coord domain.Coordinate) error

	// UpdateTileOverlap replaces the stored bitmask and its grid version.
	UpdateTileOverlap(ctx context.Context, id string, overlap domain.TileOverlap) error

	// ListStaleOverlap returns up to limit trips whose bitmask was computed
	// on a grid version other than activeVersion, ordered by id and starting
	// after afterID. An empty afterID starts from the first trip.
	ListStaleOverlap(ctx context.Context, activeVersion int64, afterID string, limit int) ([]*domain.HostedTrip, error)
}

// RequestedTripRepository defines the persistence operations for requested trips.
type RequestedTripRepository interface {
	// Create persists a new requested trip.
	Create(ctx context.Context, trip *domain.RequestedTrip) error

	// GetByID retrieves a requested trip by ID.
	GetByID(ctx context.Context, id string) (*domain.RequestedTrip, error)

	// ListScheduledBetween returns requested trips scheduled within [from, to]
	// that are not owned by excludeOwnerID and have not ended.
	ListScheduledBetween(ctx context.Context, from, to time.Time, excludeOwnerID string) ([]*domain.RequestedTrip, error)

	// UpdateTileOverlap replaces the stored bitmask and its grid version.
	UpdateTileOverlap(ctx context.Context, id string, overlap domain.TileOverlap) error

	// ListStaleOverlap returns up to limit trips whose bitmask was computed
	// on a grid version other than activeVersion, ordered by id and starting
	// after afterID. An empty afterID starts from the first trip.
	ListStaleOverlap(ctx context.Context, activeVersion int64, afterID string, limit int) ([]*domain.RequestedTrip, error)
}
