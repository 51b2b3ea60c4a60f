package repository

import (
	"context"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// TileGridRepository defines the persistence operations for tile grids.
type TileGridRepository interface {
	// Create persists a grid with its tiles and returns the assigned version.
	// The new grid is not active.
	Create(ctx context.Context, grid *domain.TileGrid) (int64, error)

	// Activate makes version the only active grid.
	Activate(ctx context.Context, version int64) error

	// GetActive retrieves the active grid with its tiles.
	GetActive(ctx context.Context) (*domain.TileGrid, error)

	// GetByVersion retrieves a grid with its tiles.
	GetByVersion(ctx context.Context, version int64) (*domain.TileGrid, error)
}
