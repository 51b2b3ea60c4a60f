package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/observability"
	"github.com/assassinoNz/CarShare-Server/internal/redis"
)

// CachedProvider serves routes from Redis and falls back to the wrapped
// provider on a miss. Cache failures are logged and never fail the lookup.
type CachedProvider struct {
	next   Provider
	cache  redis.RouteCacheInterface
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps next with a route cache.
func NewCachedProvider(next Provider, cache redis.RouteCacheInterface, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Routes implements Provider.
func (p *CachedProvider) Routes(ctx context.Context, waypoints []domain.Coordinate) ([]Route, error) {
	cached, ok, err := p.cache.GetRoutes(ctx, waypoints)
	if err != nil {
		p.logger.WarnContext(ctx, "route cache read failed", "err", err)
	}
	if ok {
		observability.RouteCacheLookups.WithLabelValues("hit").Inc()
		return fromCache(cached), nil
	}
	observability.RouteCacheLookups.WithLabelValues("miss").Inc()

	routes, err := p.next.Routes(ctx, waypoints)
	if err != nil {
		return nil, err
	}
	if len(routes) > 0 {
		if err := p.cache.SetRoutes(ctx, waypoints, toCache(routes), p.ttl); err != nil {
			p.logger.WarnContext(ctx, "route cache write failed", "err", err)
		}
	}
	return routes, nil
}

func toCache(routes []Route) []redis.CachedRoute {
	out := make([]redis.CachedRoute, len(routes))
	for i, r := range routes {
		legs := make([][]string, len(r.Legs))
		for j, l := range r.Legs {
			steps := make([]string, len(l.Steps))
			for k, s := range l.Steps {
				steps[k] = s.Polyline
			}
			legs[j] = steps
		}
		out[i] = redis.CachedRoute{Legs: legs}
	}
	return out
}

func fromCache(cached []redis.CachedRoute) []Route {
	out := make([]Route, len(cached))
	for i, c := range cached {
		legs := make([]Leg, len(c.Legs))
		for j, l := range c.Legs {
			steps := make([]Step, len(l))
			for k, poly := range l {
				steps[k] = Step{Polyline: poly}
			}
			legs[j] = Leg{Steps: steps}
		}
		out[i] = Route{Legs: legs}
	}
	return out
}

var _ Provider = (*CachedProvider)(nil)
