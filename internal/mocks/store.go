// Package mocks holds in-memory fakes of the repositories and external
// collaborators, shared by the service and handler tests.
package mocks

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// Store is one in-memory database. All repositories created from the same
// Store share a single lock, so ApplyTransition is atomic like a SQL
// transaction.
type Store struct {
	mu         sync.RWMutex
	hosted     map[string]*domain.HostedTrip
	requested  map[string]*domain.RequestedTrip
	handshakes map[string]*domain.Handshake
	callers    map[string]*domain.Caller
	vehicles   map[string]*domain.Vehicle
	grids      map[int64]*domain.TileGrid
	nextGrid   int64

	// Counters for verification
	ApplyTransitionCallCount int32
	ListScheduledCallCount   int32

	// Error injection
	CreateHostedError     error
	CreateRequestedError  error
	CreateHandshakeError  error
	ApplyTransitionError  error
	ListScheduledError    error
	UpdateOverlapErrorFor map[string]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		hosted:                make(map[string]*domain.HostedTrip),
		requested:             make(map[string]*domain.RequestedTrip),
		handshakes:            make(map[string]*domain.Handshake),
		callers:               make(map[string]*domain.Caller),
		vehicles:              make(map[string]*domain.Vehicle),
		grids:                 make(map[int64]*domain.TileGrid),
		UpdateOverlapErrorFor: make(map[string]error),
	}
}

// AddHostedTrip stores a copy of trip.
func (s *Store) AddHostedTrip(trip *domain.HostedTrip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *trip
	s.hosted[trip.ID] = &c
}

// AddRequestedTrip stores a copy of trip.
func (s *Store) AddRequestedTrip(trip *domain.RequestedTrip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *trip
	s.requested[trip.ID] = &c
}

// AddHandshake stores a copy of h.
func (s *Store) AddHandshake(h *domain.Handshake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *h
	s.handshakes[h.ID] = &c
}

// AddCaller stores a user with its permissions.
func (s *Store) AddCaller(c *domain.Caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.callers[c.ID] = &cp
}

// AddVehicle stores a registered vehicle.
func (s *Store) AddVehicle(v *domain.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vehicles[v.ID] = &cp
}

// HostedTrip returns a copy of the stored hosted trip, or nil.
func (s *Store) HostedTrip(id string) *domain.HostedTrip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.hosted[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

// RequestedTrip returns a copy of the stored requested trip, or nil.
func (s *Store) RequestedTrip(id string) *domain.RequestedTrip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.requested[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

// Handshake returns a copy of the stored handshake, or nil.
func (s *Store) Handshake(id string) *domain.Handshake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handshakes[id]
	if !ok {
		return nil
	}
	c := *h
	return &c
}

// CountHandshakes returns the number of stored handshakes.
func (s *Store) CountHandshakes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handshakes)
}

// ──────────────────────────────────────────────
// HOSTED TRIPS
// ──────────────────────────────────────────────

// HostedTripRepository is an in-memory repository.HostedTripRepository.
type HostedTripRepository struct{ s *Store }

// HostedTrips returns the hosted trip repository of the store.
func (s *Store) HostedTrips() *HostedTripRepository { return &HostedTripRepository{s: s} }

func (r *HostedTripRepository) Create(ctx context.Context, trip *domain.HostedTrip) error {
	if r.s.CreateHostedError != nil {
		return r.s.CreateHostedError
	}
	r.s.AddHostedTrip(trip)
	return nil
}

func (r *HostedTripRepository) GetByID(ctx context.Context, id string) (*domain.HostedTrip, error) {
	if t := r.s.HostedTrip(id); t != nil {
		return t, nil
	}
	return nil, repository.NotFound("hosted trip", id)
}

func (r *HostedTripRepository) UpdateState(ctx context.Context, id string, state domain.HostedTripState, at time.Time, coord domain.Coordinate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.hosted[id]
	if !ok {
		return repository.NotFound("hosted trip", id)
	}
	c := coord
	switch state {
	case domain.HostedTripStateStarted:
		if t.Time.Started != nil {
			return repository.ErrConflict
		}
		t.Time.Started = &at
		t.Route.Started = &c
	case domain.HostedTripStateEnded:
		if t.Time.Started == nil || t.Time.Ended != nil {
			return repository.ErrConflict
		}
		t.Time.Ended = &at
		t.Route.Ended = &c
	default:
		return domain.NewValidationError("state", "unknown hosted trip state %q", state)
	}
	return nil
}

func (r *HostedTripRepository) UpdateTileOverlap(ctx context.Context, id string, overlap domain.TileOverlap) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.UpdateOverlapErrorFor[id]; err != nil {
		return err
	}
	t, ok := r.s.hosted[id]
	if !ok {
		return repository.NotFound("hosted trip", id)
	}
	t.Route.Overlap = overlap
	return nil
}

func (r *HostedTripRepository) ListStaleOverlap(ctx context.Context, activeVersion int64, afterID string, limit int) ([]*domain.HostedTrip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.HostedTrip
	for _, id := range sortedKeys(r.s.hosted) {
		t := r.s.hosted[id]
		if id > afterID && t.Route.Overlap.GridVersion != activeVersion {
			c := *t
			out = append(out, &c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// REQUESTED TRIPS
// ──────────────────────────────────────────────

// RequestedTripRepository is an in-memory repository.RequestedTripRepository.
type RequestedTripRepository struct{ s *Store }

// RequestedTrips returns the requested trip repository of the store.
func (s *Store) RequestedTrips() *RequestedTripRepository { return &RequestedTripRepository{s: s} }

func (r *RequestedTripRepository) Create(ctx context.Context, trip *domain.RequestedTrip) error {
	if r.s.CreateRequestedError != nil {
		return r.s.CreateRequestedError
	}
	r.s.AddRequestedTrip(trip)
	return nil
}

func (r *RequestedTripRepository) GetByID(ctx context.Context, id string) (*domain.RequestedTrip, error) {
	if t := r.s.RequestedTrip(id); t != nil {
		return t, nil
	}
	return nil, repository.NotFound("requested trip", id)
}

func (r *RequestedTripRepository) ListScheduledBetween(ctx context.Context, from, to time.Time, excludeOwnerID string) ([]*domain.RequestedTrip, error) {
	atomic.AddInt32(&r.s.ListScheduledCallCount, 1)
	if r.s.ListScheduledError != nil {
		return nil, r.s.ListScheduledError
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.RequestedTrip
	for _, id := range sortedKeys(r.s.requested) {
		t := r.s.requested[id]
		if t.RequesterID == excludeOwnerID || t.Time.Ended != nil {
			continue
		}
		if t.Time.Schedule.Before(from) || t.Time.Schedule.After(to) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (r *RequestedTripRepository) UpdateTileOverlap(ctx context.Context, id string, overlap domain.TileOverlap) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.UpdateOverlapErrorFor[id]; err != nil {
		return err
	}
	t, ok := r.s.requested[id]
	if !ok {
		return repository.NotFound("requested trip", id)
	}
	t.Route.Overlap = overlap
	return nil
}

func (r *RequestedTripRepository) ListStaleOverlap(ctx context.Context, activeVersion int64, afterID string, limit int) ([]*domain.RequestedTrip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.RequestedTrip
	for _, id := range sortedKeys(r.s.requested) {
		t := r.s.requested[id]
		if id > afterID && t.Route.Overlap.GridVersion != activeVersion {
			c := *t
			out = append(out, &c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ repository.HostedTripRepository    = (*HostedTripRepository)(nil)
	_ repository.RequestedTripRepository = (*RequestedTripRepository)(nil)
)
