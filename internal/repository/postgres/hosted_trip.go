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

const hostedTripColumns = `
	id, host_id, vehicle_id, vehicle, from_name, to_name, key_coords, polylines,
	tile_mask, tile_grid_version, started_coord, ended_coord, seats, remaining_seats,
	price_first_km, price_next_km, bank_account_id, schedule_at, started_at, ended_at, created_at`

// HostedTripRepository is a PostgreSQL implementation of repository.HostedTripRepository.
type HostedTripRepository struct {
	q Querier
}

// NewHostedTripRepository creates a new PostgreSQL hosted trip repository.
func NewHostedTripRepository(db *sql.DB) *HostedTripRepository {
	return &HostedTripRepository{q: db}
}

// NewHostedTripRepositoryWithTx creates a hosted trip repository using a transaction.
func NewHostedTripRepositoryWithTx(tx *sql.Tx) *HostedTripRepository {
	return &HostedTripRepository{q: tx}
}

// Create persists a new hosted trip.
func (r *HostedTripRepository) Create(ctx context.Context, trip *domain.HostedTrip) error {
	query := `
		INSERT INTO hosted_trips (` + hostedTripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	var vehicleID sql.NullString
	if trip.VehicleID != "" {
		vehicleID = sql.NullString{String: trip.VehicleID, Valid: true}
	}
	var vehicle any
	if trip.Vehicle != nil {
		v, err := jsonParam(trip.Vehicle)
		if err != nil {
			return err
		}
		vehicle = v
	}
	keyCoords, err := jsonParam(trip.Route.KeyCoords)
	if err != nil {
		return err
	}
	polylines, err := jsonParam(trip.Route.Polylines)
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
		trip.HostID,
		vehicleID,
		vehicle,
		trip.Route.From,
		trip.Route.To,
		keyCoords,
		polylines,
		mask,
		trip.Route.Overlap.GridVersion,
		startedCoord,
		endedCoord,
		trip.Seats,
		trip.RemainingSeats,
		trip.Billing.PriceFirstKm,
		trip.Billing.PriceNextKm,
		trip.Billing.BankAccountID,
		trip.Time.Schedule,
		nullTime(trip.Time.Started),
		nullTime(trip.Time.Ended),
		trip.CreatedAt,
	)

	return err
}

func scanHostedTrip(row rowScanner) (*domain.HostedTrip, error) {
	var trip domain.HostedTrip
	var vehicleID sql.NullString
	var vehicle, keyCoords, polylines, mask, startedCoord, endedCoord []byte
	var gridVersion int64
	var startedAt, endedAt sql.NullTime

	if err := row.Scan(
		&trip.ID,
		&trip.HostID,
		&vehicleID,
		&vehicle,
		&trip.Route.From,
		&trip.Route.To,
		&keyCoords,
		&polylines,
		&mask,
		&gridVersion,
		&startedCoord,
		&endedCoord,
		&trip.Seats,
		&trip.RemainingSeats,
		&trip.Billing.PriceFirstKm,
		&trip.Billing.PriceNextKm,
		&trip.Billing.BankAccountID,
		&trip.Time.Schedule,
		&startedAt,
		&endedAt,
		&trip.CreatedAt,
	); err != nil {
		return nil, err
	}

	trip.VehicleID = vehicleID.String
	if len(vehicle) > 0 {
		trip.Vehicle = &domain.Vehicle{}
		if err := json.Unmarshal(vehicle, trip.Vehicle); err != nil {
			return nil, fmt.Errorf("decode vehicle: %w", err)
		}
	}
	if err := json.Unmarshal(keyCoords, &trip.Route.KeyCoords); err != nil {
		return nil, fmt.Errorf("decode key coords: %w", err)
	}
	if err := json.Unmarshal(polylines, &trip.Route.Polylines); err != nil {
		return nil, fmt.Errorf("decode polylines: %w", err)
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
	trip.Time.Started = timePtr(startedAt)
	trip.Time.Ended = timePtr(endedAt)

	return &trip, nil
}

// GetByID retrieves a hosted trip by ID.
func (r *HostedTripRepository) GetByID(ctx context.Context, id string) (*domain.HostedTrip, error) {
	query := `SELECT ` + hostedTripColumns + ` FROM hosted_trips WHERE id = $1`

	trip, err := scanHostedTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NotFound("hosted trip", id)
		}
		return nil, err
	}
	return trip, nil
}

// UpdateState records the start or end of a hosted trip.
func (r *HostedTripRepository) UpdateState(ctx context.Context, id string, state domain.HostedTripState, at time.Time, coord domain.Coordinate) error {
	var query string
	switch state {
	case domain.HostedTripStateStarted:
		query = `
			UPDATE hosted_trips SET started_at = $1, started_coord = $2
			WHERE id = $3 AND started_at IS NULL
		`
	case domain.HostedTripStateEnded:
		query = `
			UPDATE hosted_trips SET ended_at = $1, ended_coord = $2
			WHERE id = $3 AND started_at IS NOT NULL AND ended_at IS NULL
		`
	default:
		return domain.NewValidationError("state", "unknown hosted trip state %q", state)
	}

	c, err := coordParam(&coord)
	if err != nil {
		return err
	}
	result, err := r.q.ExecContext(ctx, query, at, c, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}

	return nil
}

// UpdateTileOverlap replaces the stored bitmask and its grid version.
func (r *HostedTripRepository) UpdateTileOverlap(ctx context.Context, id string, overlap domain.TileOverlap) error {
	mask, err := overlap.Mask.MarshalBinary()
	if err != nil {
		return err
	}
	result, err := r.q.ExecContext(ctx,
		`UPDATE hosted_trips SET tile_mask = $1, tile_grid_version = $2 WHERE id = $3`,
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
		return repository.NotFound("hosted trip", id)
	}
	return nil
}

// ListStaleOverlap returns trips indexed on another grid version, keyset
// paged by id.
func (r *HostedTripRepository) ListStaleOverlap(ctx context.Context, activeVersion int64, afterID string, limit int) ([]*domain.HostedTrip, error) {
	query := `
		SELECT ` + hostedTripColumns + `
		FROM hosted_trips
		WHERE tile_grid_version <> $1 AND ($2::uuid IS NULL OR id > $2::uuid)
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, activeVersion, cursorParam(afterID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.HostedTrip
	for rows.Next() {
		trip, err := scanHostedTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// reserveSeats decrements remaining seats only if enough are left.
func (r *HostedTripRepository) reserveSeats(ctx context.Context, id string, n int) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE hosted_trips SET remaining_seats = remaining_seats - $1
		WHERE id = $2 AND remaining_seats >= $1
	`, n, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		trip, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &domain.CapacityError{HostedTripID: id, Remaining: trip.RemainingSeats, Requested: n}
	}
	return nil
}

// releaseSeats gives seats back, never above capacity.
func (r *HostedTripRepository) releaseSeats(ctx context.Context, id string, n int) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE hosted_trips SET remaining_seats = LEAST(seats, remaining_seats + $1)
		WHERE id = $2
	`, n, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.NotFound("hosted trip", id)
	}
	return nil
}

// Ensure HostedTripRepository implements repository.HostedTripRepository.
var _ repository.HostedTripRepository = (*HostedTripRepository)(nil)
