package redis

import (
	"context"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// RouteCacheInterface defines route caching keyed by waypoints.
type RouteCacheInterface interface {
	GetRoutes(ctx context.Context, waypoints []domain.Coordinate) ([]CachedRoute, bool, error)
	SetRoutes(ctx context.Context, waypoints []domain.Coordinate, routes []CachedRoute, ttl time.Duration) error
}

// GridCacheInterface defines caching of the active tile grid version.
type GridCacheInterface interface {
	GetActiveGridVersion(ctx context.Context) (int64, bool, error)
	SetActiveGridVersion(ctx context.Context, version int64) error
	InvalidateActiveGrid(ctx context.Context) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireGridLock(ctx context.Context, ttl time.Duration) (string, bool, error)
	ReleaseGridLock(ctx context.Context, token string) error
}

// IdempotencyStoreInterface defines storage of replayable responses.
type IdempotencyStoreInterface interface {
	GetResponse(ctx context.Context, callerID, key string) (*CachedResponse, bool, error)
	SetResponse(ctx context.Context, callerID, key string, resp *CachedResponse, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ RouteCacheInterface       = (*CacheStore)(nil)
	_ GridCacheInterface        = (*CacheStore)(nil)
	_ LockStoreInterface        = (*LockStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
