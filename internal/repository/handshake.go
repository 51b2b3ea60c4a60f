package repository

import (
	"context"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// RequestedTripMirror copies a handshake step onto the requested trip.
type RequestedTripMirror struct {
	RequestedTripID string
	State           domain.HostedTripState // STARTED or ENDED
	At              time.Time
	Coord           domain.Coordinate
}

// TransitionWrite is everything one handshake transition writes. It is
// applied atomically: either every part succeeds or nothing changes.
type TransitionWrite struct {
	HandshakeID     string
	ExpectedVersion int
	State           domain.HandshakeState
	At              time.Time

	// SeatDelta adjusts the hosted trip's remaining seats: negative reserves
	// (refused with a CapacityError if it would go below zero), positive releases.
	HostedTripID string
	SeatDelta    int

	Mirror  *RequestedTripMirror
	Pickup  *domain.Coordinate
	Dropoff *domain.Coordinate
	Payment *domain.Payment
}

// HandshakeRepository defines the persistence operations for handshakes.
type HandshakeRepository interface {
	// Create persists a new handshake.
	Create(ctx context.Context, h *domain.Handshake) error

	// GetByID retrieves a handshake by ID.
	GetByID(ctx context.Context, id string) (*domain.Handshake, error)

	// FindOpenByTrips returns the non-cancelled handshake between the two trips.
	// Returns nil if none exists.
	FindOpenByTrips(ctx context.Context, hostedTripID, requestedTripID string) (*domain.Handshake, error)

	// ApplyTransition sets the state timestamp only if the handshake is still
	// at ExpectedVersion, not cancelled, and has the state's predecessor set,
	// together with the seat, mirror and record updates in w.
	// Returns ErrConflict if the handshake moved on, or a CapacityError.
	ApplyTransition(ctx context.Context, w TransitionWrite) error
}
