package mocks

import (
	"context"
	"sync/atomic"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// TileGridRepository is an in-memory repository.TileGridRepository.
type TileGridRepository struct {
	s *Store

	CreateCallCount int32
	CreateError     error
}

// Grids returns the tile grid repository of the store.
func (s *Store) Grids() *TileGridRepository { return &TileGridRepository{s: s} }

func copyGrid(g *domain.TileGrid) *domain.TileGrid {
	c := *g
	c.Tiles = append([]domain.Tile(nil), g.Tiles...)
	return &c
}

func (r *TileGridRepository) Create(ctx context.Context, grid *domain.TileGrid) (int64, error) {
	atomic.AddInt32(&r.CreateCallCount, 1)
	if r.CreateError != nil {
		return 0, r.CreateError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextGrid++
	c := copyGrid(grid)
	c.Version = r.s.nextGrid
	c.Active = false
	r.s.grids[c.Version] = c
	return c.Version, nil
}

func (r *TileGridRepository) Activate(ctx context.Context, version int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.grids[version]; !ok {
		return repository.NotFound("tile grid", "")
	}
	for v, g := range r.s.grids {
		g.Active = v == version
	}
	return nil
}

func (r *TileGridRepository) GetActive(ctx context.Context) (*domain.TileGrid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, g := range r.s.grids {
		if g.Active {
			return copyGrid(g), nil
		}
	}
	return nil, repository.NotFound("active tile grid", "")
}

func (r *TileGridRepository) GetByVersion(ctx context.Context, version int64) (*domain.TileGrid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if g, ok := r.s.grids[version]; ok {
		return copyGrid(g), nil
	}
	return nil, repository.NotFound("tile grid", "")
}

var _ repository.TileGridRepository = (*TileGridRepository)(nil)
