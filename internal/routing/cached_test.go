package routing

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/redis"
)

type memoryRouteCache struct {
	mu     sync.Mutex
	routes map[string][]redis.CachedRoute
}

func (c *memoryRouteCache) GetRoutes(_ context.Context, w []domain.Coordinate) ([]redis.CachedRoute, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routes[redis.RouteKey(w)]
	return r, ok, nil
}

func (c *memoryRouteCache) SetRoutes(_ context.Context, w []domain.Coordinate, r []redis.CachedRoute, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[redis.RouteKey(w)] = r
	return nil
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) Routes(context.Context, []domain.Coordinate) ([]Route, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return []Route{{Legs: []Leg{{Steps: []Step{{Polyline: "aaa"}, {Polyline: "bbb"}}}}}}, nil
}

func TestCachedProvider_ServesRepeatFromCache(t *testing.T) {
	t.Parallel()

	next := &countingProvider{}
	cache := &memoryRouteCache{routes: make(map[string][]redis.CachedRoute)}
	p := NewCachedProvider(next, cache, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 3; i++ {
		routes, err := p.Routes(context.Background(), testWaypoints)
		if err != nil {
			t.Fatalf("Routes returned error: %v", err)
		}
		if got := routes[0].Polylines(); len(got) != 2 || got[1] != "bbb" {
			t.Fatalf("call %d: unexpected polylines %v", i, got)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}
}
