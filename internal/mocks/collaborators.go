package mocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/events"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
	"github.com/assassinoNz/CarShare-Server/internal/redis"
	"github.com/assassinoNz/CarShare-Server/internal/routing"
	"github.com/assassinoNz/CarShare-Server/internal/tiles"
)

// ──────────────────────────────────────────────
// ROUTE PROVIDER
// ──────────────────────────────────────────────

// RouteProvider returns canned routes. Waypoint lists without a canned entry
// get one straight route through the waypoints, one step per leg.
type RouteProvider struct {
	mu     sync.Mutex
	canned map[string][]routing.Route
	Err    error
	calls  int32
}

// NewRouteProvider creates a provider with no canned routes.
func NewRouteProvider() *RouteProvider {
	return &RouteProvider{canned: make(map[string][]routing.Route)}
}

// SetRoutes cans the routes returned for waypoints.
func (p *RouteProvider) SetRoutes(waypoints []domain.Coordinate, routes ...routing.Route) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canned[redis.RouteKey(waypoints)] = routes
}

// CallCount returns the number of Routes calls.
func (p *RouteProvider) CallCount() int { return int(atomic.LoadInt32(&p.calls)) }

func (p *RouteProvider) Routes(ctx context.Context, waypoints []domain.Coordinate) ([]routing.Route, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.Err != nil {
		return nil, p.Err
	}
	p.mu.Lock()
	routes, ok := p.canned[redis.RouteKey(waypoints)]
	p.mu.Unlock()
	if ok {
		return routes, nil
	}
	return []routing.Route{StraightRoute(waypoints...)}, nil
}

// StraightRoute builds a route of straight legs between consecutive waypoints.
func StraightRoute(waypoints ...domain.Coordinate) routing.Route {
	var r routing.Route
	for i := 1; i < len(waypoints); i++ {
		poly := geometry.EncodePolyline([]domain.Coordinate{waypoints[i-1], waypoints[i]})
		r.Legs = append(r.Legs, routing.Leg{Steps: []routing.Step{{Polyline: poly}}})
	}
	return r
}

// ──────────────────────────────────────────────
// EVENTS
// ──────────────────────────────────────────────

// Publisher records published handshake events.
type Publisher struct {
	mu     sync.Mutex
	events []events.HandshakeEvent
	Err    error
}

func (p *Publisher) PublishHandshake(ctx context.Context, e events.HandshakeEvent) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *Publisher) Close() error { return nil }

// Events returns a copy of the published events in order.
func (p *Publisher) Events() []events.HandshakeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.HandshakeEvent(nil), p.events...)
}

// ──────────────────────────────────────────────
// REDIS
// ──────────────────────────────────────────────

// GridCache is an in-memory redis.GridCacheInterface.
type GridCache struct {
	mu      sync.Mutex
	version int64
	set     bool
}

func (c *GridCache) GetActiveGridVersion(ctx context.Context) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, c.set, nil
}

func (c *GridCache) SetActiveGridVersion(ctx context.Context, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version, c.set = version, true
	return nil
}

func (c *GridCache) InvalidateActiveGrid(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version, c.set = 0, false
	return nil
}

// LockStore is an in-memory redis.LockStoreInterface. Set Held to simulate
// a lock owned by another process.
type LockStore struct {
	mu           sync.Mutex
	Held         bool
	ReleaseCount int
}

func (l *LockStore) AcquireGridLock(ctx context.Context, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Held {
		return "", false, nil
	}
	l.Held = true
	return "token", true, nil
}

func (l *LockStore) ReleaseGridLock(ctx context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != "token" {
		return errors.New("lock token mismatch")
	}
	l.Held = false
	l.ReleaseCount++
	return nil
}

// IdempotencyStore is an in-memory redis.IdempotencyStoreInterface.
type IdempotencyStore struct {
	mu       sync.Mutex
	stored   map[string]redis.CachedResponse
	GetError error
	SetCount int
}

// NewIdempotencyStore creates an empty store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{stored: make(map[string]redis.CachedResponse)}
}

func (s *IdempotencyStore) GetResponse(ctx context.Context, callerID, key string) (*redis.CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetError != nil {
		return nil, false, s.GetError
	}
	resp, ok := s.stored[redis.IdempotencyKey(callerID, key)]
	if !ok {
		return nil, false, nil
	}
	resp.Body = append([]byte(nil), resp.Body...)
	return &resp, true, nil
}

func (s *IdempotencyStore) SetResponse(ctx context.Context, callerID, key string, resp *redis.CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *resp
	cp.Body = append([]byte(nil), resp.Body...)
	s.stored[redis.IdempotencyKey(callerID, key)] = cp
	s.SetCount++
	return nil
}

// ──────────────────────────────────────────────
// TILE INDEX
// ──────────────────────────────────────────────

// StaticIndex serves one prebuilt tile index.
type StaticIndex struct {
	Index *tiles.Index
	Err   error
}

// NewStaticIndex builds a grid over box and indexes it with the planar engine.
func NewStaticIndex(box domain.BoundingBox, numTilesX, numTilesY int, version int64) (*StaticIndex, error) {
	grid, err := tiles.BuildGrid(box, numTilesX, numTilesY)
	if err != nil {
		return nil, err
	}
	grid.Version = version
	grid.Active = true
	idx, err := tiles.NewIndex(grid, geometry.NewPlanarEngine())
	if err != nil {
		return nil, err
	}
	return &StaticIndex{Index: idx}, nil
}

func (s *StaticIndex) ActiveIndex(ctx context.Context) (*tiles.Index, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Index, nil
}

var (
	_ routing.Provider         = (*RouteProvider)(nil)
	_ events.Publisher         = (*Publisher)(nil)
	_ redis.GridCacheInterface = (*GridCache)(nil)
	_ redis.LockStoreInterface = (*LockStore)(nil)

	_ redis.IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
