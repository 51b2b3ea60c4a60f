package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
	"github.com/assassinoNz/CarShare-Server/internal/redis"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
	"github.com/assassinoNz/CarShare-Server/internal/routing"
	"github.com/assassinoNz/CarShare-Server/internal/tiles"
)

const (
	gridLockTTL         = 5 * time.Minute
	defaultBackfillSize = 100
)

// IndexSource yields the tile index of the active grid version.
type IndexSource interface {
	ActiveIndex(ctx context.Context) (*tiles.Index, error)
}

// GridService administers the versioned tile grid and keeps stored trip
// bitmasks in step with the active version.
type GridService struct {
	grids     repository.TileGridRepository
	hosted    repository.HostedTripRepository
	requested repository.RequestedTripRepository
	routes    routing.Provider
	engine    geometry.Engine
	cache     redis.GridCacheInterface
	lock      redis.LockStoreInterface
	box       domain.BoundingBox
	maxRoutes int
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	index *tiles.Index
}

// GridServiceConfig holds the GridService collaborators. Cache and Lock may be nil.
type GridServiceConfig struct {
	Grids     repository.TileGridRepository
	Hosted    repository.HostedTripRepository
	Requested repository.RequestedTripRepository
	Routes    routing.Provider
	Engine    geometry.Engine
	Cache     redis.GridCacheInterface
	Lock      redis.LockStoreInterface
	Box       domain.BoundingBox
	MaxRoutes int
	Logger    *slog.Logger
}

// NewGridService creates a new GridService.
func NewGridService(cfg GridServiceConfig) *GridService {
	return &GridService{
		grids:     cfg.Grids,
		hosted:    cfg.Hosted,
		requested: cfg.Requested,
		routes:    cfg.Routes,
		engine:    cfg.Engine,
		cache:     cfg.Cache,
		lock:      cfg.Lock,
		box:       cfg.Box,
		maxRoutes: cfg.MaxRoutes,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// ActiveIndex returns the index of the active grid, loading it when the
// active version changed since the last call.
func (s *GridService) ActiveIndex(ctx context.Context) (*tiles.Index, error) {
	s.mu.RLock()
	current := s.index
	s.mu.RUnlock()

	if current != nil {
		if s.cache == nil {
			return current, nil
		}
		version, ok, err := s.cache.GetActiveGridVersion(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "active grid cache read failed", "err", err)
		}
		if ok && version == current.Version() {
			return current, nil
		}
	}

	grid, err := s.grids.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoActiveGrid, err)
		}
		return nil, domain.Upstream("store", "get active grid", err)
	}

	if current != nil && current.Version() == grid.Version {
		s.cacheVersion(ctx, grid.Version)
		return current, nil
	}
	return s.install(ctx, grid)
}

func (s *GridService) install(ctx context.Context, grid *domain.TileGrid) (*tiles.Index, error) {
	idx, err := tiles.NewIndex(grid, s.engine)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()

	s.cacheVersion(ctx, grid.Version)
	s.logger.InfoContext(ctx, "tile grid loaded",
		"grid_version", grid.Version,
		"num_tiles_x", grid.NumTilesX,
		"num_tiles_y", grid.NumTilesY,
	)
	return idx, nil
}

func (s *GridService) cacheVersion(ctx context.Context, version int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetActiveGridVersion(ctx, version); err != nil {
		s.logger.WarnContext(ctx, "active grid cache write failed", "err", err)
	}
}

// Rebuild persists a new grid version over the configured region and makes
// it active. Stored bitmasks become stale until Backfill recomputes them.
func (s *GridService) Rebuild(ctx context.Context, numTilesX, numTilesY int) (*domain.TileGrid, error) {
	if s.lock != nil {
		token, ok, err := s.lock.AcquireGridLock(ctx, gridLockTTL)
		if err != nil {
			return nil, domain.Upstream("redis", "acquire grid lock", err)
		}
		if !ok {
			return nil, ErrRebuildInProgress
		}
		defer func() {
			if err := s.lock.ReleaseGridLock(context.WithoutCancel(ctx), token); err != nil {
				s.logger.WarnContext(ctx, "release grid lock failed", "err", err)
			}
		}()
	}

	grid, err := tiles.BuildGrid(s.box, numTilesX, numTilesY)
	if err != nil {
		return nil, err
	}
	grid.CreatedAt = s.now()

	version, err := s.grids.Create(ctx, grid)
	if err != nil {
		return nil, domain.Upstream("store", "create grid", err)
	}
	grid.Version = version

	if err := s.grids.Activate(ctx, version); err != nil {
		return nil, domain.Upstream("store", "activate grid", err)
	}
	grid.Active = true

	if s.cache != nil {
		if err := s.cache.InvalidateActiveGrid(ctx); err != nil {
			s.logger.WarnContext(ctx, "active grid cache invalidation failed", "err", err)
		}
	}
	if _, err := s.install(ctx, grid); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tile grid rebuilt", "grid_version", version, "tiles", len(grid.Tiles))
	return grid, nil
}

// BackfillResult counts the trips re-indexed by Backfill.
type BackfillResult struct {
	GridVersion      int64 `json:"gridVersion"`
	HostedUpdated    int   `json:"hostedUpdated"`
	RequestedUpdated int   `json:"requestedUpdated"`
	Failed           int   `json:"failed"`
}

// Backfill recomputes the bitmask of every trip indexed on a grid version
// other than the active one. Trips are paged by id, so a trip that fails is
// logged, counted once and left stale without holding back the rest.
func (s *GridService) Backfill(ctx context.Context, batchSize int) (*BackfillResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBackfillSize
	}

	idx, err := s.ActiveIndex(ctx)
	if err != nil {
		return nil, err
	}
	res := &BackfillResult{GridVersion: idx.Version()}

	after := ""
	for {
		batch, err := s.hosted.ListStaleOverlap(ctx, idx.Version(), after, batchSize)
		if err != nil {
			return res, domain.Upstream("store", "list stale hosted trips", err)
		}
		for _, trip := range batch {
			after = trip.ID
			if err := s.reindexHosted(ctx, idx, trip); err != nil {
				res.Failed++
				s.logger.WarnContext(ctx, "hosted trip backfill failed", "hosted_trip_id", trip.ID, "err", err)
				continue
			}
			res.HostedUpdated++
		}
		if len(batch) < batchSize {
			break
		}
	}

	after = ""
	for {
		batch, err := s.requested.ListStaleOverlap(ctx, idx.Version(), after, batchSize)
		if err != nil {
			return res, domain.Upstream("store", "list stale requested trips", err)
		}
		for _, trip := range batch {
			after = trip.ID
			if err := s.reindexRequested(ctx, idx, trip); err != nil {
				res.Failed++
				s.logger.WarnContext(ctx, "requested trip backfill failed", "requested_trip_id", trip.ID, "err", err)
				continue
			}
			res.RequestedUpdated++
		}
		if len(batch) < batchSize {
			break
		}
	}

	s.logger.InfoContext(ctx, "backfill finished",
		"grid_version", res.GridVersion,
		"hosted_updated", res.HostedUpdated,
		"requested_updated", res.RequestedUpdated,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *GridService) reindexHosted(ctx context.Context, idx *tiles.Index, trip *domain.HostedTrip) error {
	overlap, err := idx.ComputeBitmask(ctx, trip.Route.Polylines)
	if err != nil {
		return err
	}
	return s.hosted.UpdateTileOverlap(ctx, trip.ID, overlap)
}

func (s *GridService) reindexRequested(ctx context.Context, idx *tiles.Index, trip *domain.RequestedTrip) error {
	routes, err := s.routes.Routes(ctx, trip.Route.KeyCoords)
	if err != nil {
		return domain.Upstream("routing", "routes", err)
	}
	if len(routes) == 0 {
		return domain.NewValidationError("route.keyCoords", "no route between waypoints")
	}
	overlap, err := idx.ComputeCombined(ctx, routing.PolylineSets(routes, s.maxRoutes))
	if err != nil {
		return err
	}
	return s.requested.UpdateTileOverlap(ctx, trip.ID, overlap)
}

var _ IndexSource = (*GridService)(nil)
