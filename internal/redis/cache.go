package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// CacheStore handles route and grid caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	DefaultRouteCacheTTL = 24 * time.Hour
	ActiveGridCacheTTL   = 5 * time.Minute // Rebuilds invalidate explicitly
)

// Key prefixes
const (
	routeCachePrefix   = "cache:routes:"
	activeGridCacheKey = "cache:grid:active"
)

// waypointPrecision is the geohash length used for route keys (~5m cells),
// so waypoints a few metres apart share cached routes.
const waypointPrecision = 9

// RouteKey derives the cache key for an ordered waypoint list.
func RouteKey(waypoints []domain.Coordinate) string {
	cells := make([]string, len(waypoints))
	for i, w := range waypoints {
		cells[i] = geohash.EncodeWithPrecision(w.Lat, w.Lng, waypointPrecision)
	}
	sum := blake3.Sum256([]byte(strings.Join(cells, ";")))
	return routeCachePrefix + hex.EncodeToString(sum[:16])
}

// CachedRoute is one route as legs of step polylines.
type CachedRoute struct {
	Legs [][]string `cbor:"1,keyasint"`
}

// GetRoutes retrieves the routes between waypoints. The bool is false on a miss.
func (s *CacheStore) GetRoutes(ctx context.Context, waypoints []domain.Coordinate) ([]CachedRoute, bool, error) {
	data, err := s.client.Get(ctx, RouteKey(waypoints)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, err
	}

	var routes []CachedRoute
	if err := cbor.Unmarshal(data, &routes); err != nil {
		return nil, false, err
	}
	return routes, true, nil
}

// SetRoutes stores the routes between waypoints.
func (s *CacheStore) SetRoutes(ctx context.Context, waypoints []domain.Coordinate, routes []CachedRoute, ttl time.Duration) error {
	data, err := cbor.Marshal(routes)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultRouteCacheTTL
	}
	return s.client.Set(ctx, RouteKey(waypoints), data, ttl).Err()
}

// GetActiveGridVersion returns the cached active grid version; ok is false on a miss.
func (s *CacheStore) GetActiveGridVersion(ctx context.Context) (int64, bool, error) {
	v, err := s.client.Get(ctx, activeGridCacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return version, true, nil
}

// SetActiveGridVersion caches the active grid version.
func (s *CacheStore) SetActiveGridVersion(ctx context.Context, version int64) error {
	return s.client.Set(ctx, activeGridCacheKey, version, ActiveGridCacheTTL).Err()
}

// InvalidateActiveGrid removes the cached active grid version.
func (s *CacheStore) InvalidateActiveGrid(ctx context.Context) error {
	return s.client.Del(ctx, activeGridCacheKey).Err()
}
