package mocks

import (
	"context"
	"sync/atomic"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// HandshakeRepository is an in-memory repository.HandshakeRepository. Its
// ApplyTransition enforces the same conditions as the SQL update.
type HandshakeRepository struct{ s *Store }

// Handshakes returns the handshake repository of the store.
func (s *Store) Handshakes() *HandshakeRepository { return &HandshakeRepository{s: s} }

func (r *HandshakeRepository) Create(ctx context.Context, h *domain.Handshake) error {
	if r.s.CreateHandshakeError != nil {
		return r.s.CreateHandshakeError
	}
	r.s.AddHandshake(h)
	return nil
}

func (r *HandshakeRepository) GetByID(ctx context.Context, id string) (*domain.Handshake, error) {
	if h := r.s.Handshake(id); h != nil {
		return h, nil
	}
	return nil, repository.NotFound("handshake", id)
}

func (r *HandshakeRepository) FindOpenByTrips(ctx context.Context, hostedTripID, requestedTripID string) (*domain.Handshake, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, id := range sortedKeys(r.s.handshakes) {
		h := r.s.handshakes[id]
		if h.HostedTripID == hostedTripID && h.RequestedTripID == requestedTripID && !h.Time.Has(domain.HandshakeCancelled) {
			c := *h
			return &c, nil
		}
	}
	return nil, nil
}

func (r *HandshakeRepository) ApplyTransition(ctx context.Context, w repository.TransitionWrite) error {
	atomic.AddInt32(&r.s.ApplyTransitionCallCount, 1)
	if r.s.ApplyTransitionError != nil {
		return r.s.ApplyTransitionError
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.handshakes[w.HandshakeID]
	if !ok {
		return repository.NotFound("handshake", w.HandshakeID)
	}
	if stored.Version != w.ExpectedVersion ||
		stored.Time.Has(domain.HandshakeCancelled) ||
		stored.Time.Has(w.State) {
		return repository.ErrConflict
	}
	if w.State == domain.HandshakeCancelled {
		if stored.Time.Has(domain.HandshakeDonePayment) {
			return repository.ErrConflict
		}
	} else if !stored.Time.Has(domain.HandshakeTransitions[w.State].Requires) {
		return repository.ErrConflict
	}

	// Stage every change, then commit them together.
	next := *stored
	next.Version++
	next.Time.Set(w.State, w.At)
	if next.Pickup == nil && w.Pickup != nil {
		c := *w.Pickup
		next.Pickup = &c
	}
	if next.Dropoff == nil && w.Dropoff != nil {
		c := *w.Dropoff
		next.Dropoff = &c
	}
	if w.Payment != nil {
		next.Payment = *w.Payment
		if next.Payment.Status == domain.PaymentStatusDone {
			at := w.At
			next.Payment.PaidAt = &at
		}
	}

	var hosted *domain.HostedTrip
	if w.SeatDelta != 0 {
		t, ok := r.s.hosted[w.HostedTripID]
		if !ok {
			return repository.NotFound("hosted trip", w.HostedTripID)
		}
		c := *t
		if w.SeatDelta < 0 && c.RemainingSeats < -w.SeatDelta {
			return &domain.CapacityError{HostedTripID: c.ID, Remaining: c.RemainingSeats, Requested: -w.SeatDelta}
		}
		c.RemainingSeats = min(c.Seats, c.RemainingSeats+w.SeatDelta)
		hosted = &c
	}

	var requested *domain.RequestedTrip
	if w.Mirror != nil {
		t, ok := r.s.requested[w.Mirror.RequestedTripID]
		if !ok {
			return repository.NotFound("requested trip", w.Mirror.RequestedTripID)
		}
		c := *t
		at, coord := w.Mirror.At, w.Mirror.Coord
		switch w.Mirror.State {
		case domain.HostedTripStateStarted:
			if c.Time.Started == nil {
				c.Time.Started, c.Route.Started = &at, &coord
			}
		case domain.HostedTripStateEnded:
			if c.Time.Ended == nil {
				c.Time.Ended, c.Route.Ended = &at, &coord
			}
		}
		requested = &c
	}

	r.s.handshakes[next.ID] = &next
	if hosted != nil {
		r.s.hosted[hosted.ID] = hosted
	}
	if requested != nil {
		r.s.requested[requested.ID] = requested
	}
	return nil
}

var _ repository.HandshakeRepository = (*HandshakeRepository)(nil)
