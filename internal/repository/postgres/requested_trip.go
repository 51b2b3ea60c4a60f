package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

const requestedTripColumns = `
	id, requester_id, from_name, to_name, key_coords, tile_mask, tile_grid_version,
	started_coord, ended_coord, seats, feature_ac, feature_luggage,
	schedule_at, started_at, ended_at, created_at`

// RequestedTripRepository is a PostgreSQL implementation of repository.RequestedTripRepository.
type RequestedTripRepository struct {
	q Querier
}

// NewRequestedTripRepository creates a new PostgreSQL requested trip repository.
func NewRequestedTripRepository(db *sql.DB) *RequestedTripRepository {
	return &RequestedTripRepository{q: db}
}

// NewRequestedTripRepositoryWithTx creates a requested trip repository using a transaction.
func NewRequestedTripRepositoryWithTx(tx *sql.Tx) *RequestedTripRepository {
	return &RequestedTripRepository{q: tx}
}

// Create persists a new requested trip.
func (r *RequestedTripRepository) Create(ctx context.Context, trip *domain.RequestedTrip) error {
	query := `
		INSERT INTO requested_trips (` + requestedTripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	keyCoords, err := jsonParam(trip.Route.KeyCoords)
	if err != nil {
		return err
	}
	mask, err := trip.Route.Overlap.Mask.MarshalBinary()
	if err != nil {
		return err
	}
	startedCoord, err := coordParam(trip.Route.Started)
	if err != nil {
		return err
	}
	endedCoord, err := coordParam(trip.Route.Ended)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		trip.ID,
		trip.RequesterID,
		trip.Route.From,
		trip.Route.To,
		keyCoords,
		mask,
		trip.Route.Overlap.GridVersion,
		startedCoord,
		endedCoord,
		trip.Seats,
		nullBool(trip.Features.AC),
		nullBool(trip.Features.Luggage),
		trip.Time.Schedule,
		nullTime(trip.Time.Started),
		nullTime(trip.Time.Ended),
		trip.CreatedAt,
	)

	return err
}

func scanRequestedTrip(row rowScanner) (*domain.RequestedTrip, error) {
	var trip domain.RequestedTrip
	var keyCoords, mask, startedCoord, endedCoord []byte
	var gridVersion int64
	var ac, luggage sql.NullBool
	var startedAt, endedAt sql.NullTime

	if err := row.Scan(
		&trip.ID,
		&trip.RequesterID,
		&trip.Route.From,
		&trip.Route.To,
		&keyCoords,
		&mask,
		&gridVersion,
		&startedCoord,
		&endedCoord,
		&trip.Seats,
		&ac,
		&luggage,
		&trip.Time.Schedule,
		&startedAt,
		&endedAt,
		&trip.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keyCoords, &trip.Route.KeyCoords); err != nil {
		return nil, fmt.Errorf("decode key coords: %w", err)
	}
	overlap, err := decodeMask(mask, gridVersion)
	if err != nil {
		return nil, err
	}
	trip.Route.Overlap = overlap
	if trip.Route.Started, err = decodeCoord(startedCoord); err != nil {
		return nil, err
	}
	if trip.Route.Ended, err = decodeCoord(endedCoord); err != nil {
		return nil, err
	}
	trip.Features = domain.FeatureRequirements{AC: boolPtr(ac), Luggage: boolPtr(luggage)}
	trip.Time.Started = timePtr(startedAt)
	trip.Time.Ended = timePtr(endedAt)

	return &trip, nil
}

func (r *RequestedTripRepository) list(ctx context.Context, query string, args ...any) ([]*domain.RequestedTrip, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.RequestedTrip
	for rows.Next() {
		trip, err := scanRequestedTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// GetByID retrieves a requested trip by ID.
func (r *RequestedTripRepository) GetByID(ctx context.Context, id string) (*domain.RequestedTrip, error) {
	query := `SELECT ` + requestedTripColumns + ` FROM requested_trips WHERE id = $1`

	trip, err := scanRequestedTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NotFound("requested trip", id)
		}
		return nil, err
	}
	return trip, nil
}

// ListScheduledBetween returns open requested trips scheduled in [from, to].
func (r *RequestedTripRepository) ListScheduledBetween(ctx context.Context, from, to time.Time, excludeOwnerID string) ([]*domain.RequestedTrip, error) {
	query := `
		SELECT ` + requestedTripColumns + `
		FROM requested_trips
		WHERE schedule_at BETWEEN $1 AND $2
		  AND requester_id <> $3
		  AND ended_at IS NULL
		ORDER BY schedule_at, id
	`
	return r.list(ctx, query, from, to, excludeOwnerID)
}

// UpdateTileOverlap replaces the stored bitmask and its grid version.
func (r *RequestedTripRepository) UpdateTileOverlap(ctx context.Context, id string, overlap domain.TileOverlap) error {
	mask, err := overlap.Mask.MarshalBinary()
	if err != nil {
		return err
	}
	result, err := r.q.ExecContext(ctx,
		`UPDATE requested_trips SET tile_mask = $1, tile_grid_version = $2 WHERE id = $3`,
		mask, overlap.GridVersion, id,
	)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.NotFound("requested trip", id)
	}
	return nil
}

// ListStaleOverlap returns trips indexed on another grid version, keyset
// paged by id.
func (r *RequestedTripRepository) ListStaleOverlap(ctx context.Context, activeVersion int64, afterID string, limit int) ([]*domain.RequestedTrip, error) {
	query := `
		SELECT ` + requestedTripColumns + `
		FROM requested_trips
		WHERE tile_grid_version <> $1 AND ($2::uuid IS NULL OR id > $2::uuid)
		ORDER BY id
		LIMIT $3
	`
	return r.list(ctx, query, activeVersion, cursorParam(afterID), limit)
}

// mirror copies a handshake start or end onto the requested trip. A field
// that is already set is kept.
func (r *RequestedTripRepository) mirror(ctx context.Context, m repository.RequestedTripMirror) error {
	var query string
	switch m.State {
	case domain.HostedTripStateStarted:
		query = `
			UPDATE requested_trips
			SET started_at = COALESCE(started_at, $1), started_coord = COALESCE(started_coord, $2)
			WHERE id = $3
		`
	case domain.HostedTripStateEnded:
		query = `
			UPDATE requested_trips
			SET ended_at = COALESCE(ended_at, $1), ended_coord = COALESCE(ended_coord, $2)
			WHERE id = $3
		`
	default:
		return domain.NewValidationError("state", "unknown requested trip state %q", m.State)
	}

	c, err := coordParam(&m.Coord)
	if err != nil {
		return err
	}
	result, err := r.q.ExecContext(ctx, query, m.At, c, m.RequestedTripID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.NotFound("requested trip", m.RequestedTripID)
	}
	return nil
}

// Ensure RequestedTripRepository implements repository.RequestedTripRepository.
var _ repository.RequestedTripRepository = (*RequestedTripRepository)(nil)
