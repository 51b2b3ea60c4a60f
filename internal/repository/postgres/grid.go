package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// TileGridRepository is a PostgreSQL implementation of repository.TileGridRepository.
// Tile polygons are stored as PostGIS geometries so the tiles can be queried spatially.
type TileGridRepository struct {
	db *sql.DB
}

// NewTileGridRepository creates a new PostgreSQL tile grid repository.
func NewTileGridRepository(db *sql.DB) *TileGridRepository {
	return &TileGridRepository{db: db}
}

// Create persists a grid and its tiles and returns the assigned version.
func (r *TileGridRepository) Create(ctx context.Context, grid *domain.TileGrid) (version int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	box := grid.BoundingBox
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tile_grids (lat_top, lat_bottom, long_left, long_right, num_tiles_x, num_tiles_y, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		RETURNING version
	`, box.LatTop, box.LatBottom, box.LongLeft, box.LongRight, grid.NumTilesX, grid.NumTilesY, grid.CreatedAt).Scan(&version)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tiles (grid_version, id, tile_col, tile_row, min_lat, max_lat, min_lng, max_lng, geom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_MakeEnvelope($7, $5, $8, $6, 4326))
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, t := range grid.Tiles {
		if _, err = stmt.ExecContext(ctx, version, int64(t.ID), t.Column, t.Row, t.MinLat, t.MaxLat, t.MinLng, t.MaxLng); err != nil {
			return 0, fmt.Errorf("insert tile %d: %w", t.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return version, nil
}

// Activate makes version the only active grid.
func (r *TileGridRepository) Activate(ctx context.Context, version int64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE tile_grids SET active = FALSE WHERE active AND version <> $1`, version); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `UPDATE tile_grids SET active = TRUE WHERE version = $1`, version)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		err = repository.NotFound("tile grid", fmt.Sprint(version))
		return err
	}

	return tx.Commit()
}

// GetActive retrieves the active grid with its tiles.
func (r *TileGridRepository) GetActive(ctx context.Context) (*domain.TileGrid, error) {
	return r.get(ctx, `WHERE active`, "active")
}

// GetByVersion retrieves a grid with its tiles.
func (r *TileGridRepository) GetByVersion(ctx context.Context, version int64) (*domain.TileGrid, error) {
	return r.get(ctx, `WHERE version = $1`, fmt.Sprint(version), version)
}

func (r *TileGridRepository) get(ctx context.Context, where, label string, args ...any) (*domain.TileGrid, error) {
	query := `
		SELECT version, lat_top, lat_bottom, long_left, long_right, num_tiles_x, num_tiles_y, active, created_at
		FROM tile_grids ` + where

	var g domain.TileGrid
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&g.Version,
		&g.BoundingBox.LatTop,
		&g.BoundingBox.LatBottom,
		&g.BoundingBox.LongLeft,
		&g.BoundingBox.LongRight,
		&g.NumTilesX,
		&g.NumTilesY,
		&g.Active,
		&g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NotFound("tile grid", label)
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tile_col, tile_row, min_lat, max_lat, min_lng, max_lng
		FROM tiles
		WHERE grid_version = $1
		ORDER BY id
	`, g.Version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	g.Tiles = make([]domain.Tile, 0, g.NumTilesX*g.NumTilesY)
	for rows.Next() {
		var t domain.Tile
		var id int64
		if err := rows.Scan(&id, &t.Column, &t.Row, &t.MinLat, &t.MaxLat, &t.MinLng, &t.MaxLng); err != nil {
			return nil, err
		}
		t.ID = uint(id)
		g.Tiles = append(g.Tiles, t)
	}

	return &g, rows.Err()
}

// Ensure TileGridRepository implements repository.TileGridRepository.
var _ repository.TileGridRepository = (*TileGridRepository)(nil)
