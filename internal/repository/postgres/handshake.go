package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// stateColumns maps each handshake state to its timestamp column.
var stateColumns = map[domain.HandshakeState]string{
	domain.HandshakeInitiated:                     "initiated_at",
	domain.HandshakeSent:                          "sent_at",
	domain.HandshakeSeen:                          "seen_at",
	domain.HandshakeAccepted:                      "accepted_at",
	domain.HandshakeConfirmedAccepted:             "confirmed_accepted_at",
	domain.HandshakeStartedRequestedTrip:          "started_requested_trip_at",
	domain.HandshakeConfirmedStartedRequestedTrip: "confirmed_started_requested_trip_at",
	domain.HandshakeEndedRequestedTrip:            "ended_requested_trip_at",
	domain.HandshakeConfirmedEndedRequestedTrip:   "confirmed_ended_requested_trip_at",
	domain.HandshakeDonePayment:                   "payment_done_at",
	domain.HandshakeCancelled:                     "cancelled_at",
}

const handshakeColumns = `
	id, hosted_trip_id, requested_trip_id, sender_id, recipient_id, version,
	initiated_at, sent_at, seen_at, accepted_at, confirmed_accepted_at,
	started_requested_trip_at, confirmed_started_requested_trip_at,
	ended_requested_trip_at, confirmed_ended_requested_trip_at,
	payment_done_at, cancelled_at, pickup_coord, dropoff_coord,
	payment_amount, payment_distance_km, payment_status,
	rating_by_host, rating_by_requester, created_at`

// HandshakeRepository is a PostgreSQL implementation of repository.HandshakeRepository.
type HandshakeRepository struct {
	db *sql.DB
	q  Querier
}

// NewHandshakeRepository creates a new PostgreSQL handshake repository.
func NewHandshakeRepository(db *sql.DB) *HandshakeRepository {
	return &HandshakeRepository{db: db, q: db}
}

// Create persists a new handshake. Only the INITIATED timestamp may be set.
func (r *HandshakeRepository) Create(ctx context.Context, h *domain.Handshake) error {
	query := `
		INSERT INTO handshakes (id, hosted_trip_id, requested_trip_id, sender_id, recipient_id, version, initiated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	initiated := h.Time.At(domain.HandshakeInitiated)
	if initiated == nil {
		return domain.NewValidationError("time.initiated", "must be set")
	}

	_, err := r.q.ExecContext(ctx, query,
		h.ID,
		h.HostedTripID,
		h.RequestedTripID,
		h.SenderID,
		h.RecipientID,
		h.Version,
		*initiated,
		h.CreatedAt,
	)

	return err
}

func scanHandshake(row rowScanner) (*domain.Handshake, error) {
	var h domain.Handshake
	var times [11]sql.NullTime
	var pickup, dropoff []byte
	var status string
	var byHost, byRequester sql.NullInt64

	dest := []any{&h.ID, &h.HostedTripID, &h.RequestedTripID, &h.SenderID, &h.RecipientID, &h.Version}
	for i := range times {
		dest = append(dest, &times[i])
	}
	dest = append(dest, &pickup, &dropoff, &h.Payment.Amount, &h.Payment.DistanceKm, &status, &byHost, &byRequester, &h.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	order := append(append([]domain.HandshakeState{}, domain.HandshakeProgression...), domain.HandshakeCancelled)
	for i, s := range order {
		if times[i].Valid {
			h.Time.Set(s, times[i].Time)
		}
	}

	var err error
	if h.Pickup, err = decodeCoord(pickup); err != nil {
		return nil, fmt.Errorf("decode pickup: %w", err)
	}
	if h.Dropoff, err = decodeCoord(dropoff); err != nil {
		return nil, fmt.Errorf("decode dropoff: %w", err)
	}
	h.Payment.Status = domain.PaymentStatus(status)
	if h.Payment.Status == domain.PaymentStatusDone {
		h.Payment.PaidAt = h.Time.At(domain.HandshakeDonePayment)
	}
	if byHost.Valid {
		v := int(byHost.Int64)
		h.Rating.ByHost = &v
	}
	if byRequester.Valid {
		v := int(byRequester.Int64)
		h.Rating.ByRequester = &v
	}

	return &h, nil
}

// GetByID retrieves a handshake by ID.
func (r *HandshakeRepository) GetByID(ctx context.Context, id string) (*domain.Handshake, error) {
	query := `SELECT ` + handshakeColumns + ` FROM handshakes WHERE id = $1`

	h, err := scanHandshake(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NotFound("handshake", id)
		}
		return nil, err
	}
	return h, nil
}

// FindOpenByTrips returns the non-cancelled handshake between two trips, or nil.
func (r *HandshakeRepository) FindOpenByTrips(ctx context.Context, hostedTripID, requestedTripID string) (*domain.Handshake, error) {
	query := `
		SELECT ` + handshakeColumns + `
		FROM handshakes
		WHERE hosted_trip_id = $1 AND requested_trip_id = $2 AND cancelled_at IS NULL
	`

	h, err := scanHandshake(r.q.QueryRowContext(ctx, query, hostedTripID, requestedTripID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// ApplyTransition writes a handshake transition and its side effects in one transaction.
func (r *HandshakeRepository) ApplyTransition(ctx context.Context, w repository.TransitionWrite) (err error) {
	column, ok := stateColumns[w.State]
	if !ok || w.State == domain.HandshakeInitiated {
		return domain.NewValidationError("state", "cannot apply %q", w.State)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The timestamp is only written when the row is still at the expected
	// version, not cancelled, and has the predecessor set.
	query := fmt.Sprintf(`
		UPDATE handshakes
		SET %[1]s = $1,
		    version = version + 1,
		    pickup_coord = COALESCE(pickup_coord, $2),
		    dropoff_coord = COALESCE(dropoff_coord, $3),
		    payment_amount = COALESCE($4, payment_amount),
		    payment_distance_km = COALESCE($5, payment_distance_km),
		    payment_status = COALESCE($6, payment_status)
		WHERE id = $7
		  AND version = $8
		  AND cancelled_at IS NULL
		  AND %[1]s IS NULL`, column)
	if w.State != domain.HandshakeCancelled {
		required := domain.HandshakeTransitions[w.State].Requires
		query += fmt.Sprintf(` AND %s IS NOT NULL`, stateColumns[required])
	} else {
		query += ` AND payment_done_at IS NULL`
	}

	pickup, err := coordParam(w.Pickup)
	if err != nil {
		return err
	}
	dropoff, err := coordParam(w.Dropoff)
	if err != nil {
		return err
	}
	var amount, distance sql.NullFloat64
	var status sql.NullString
	if w.Payment != nil {
		amount = sql.NullFloat64{Float64: w.Payment.Amount, Valid: true}
		distance = sql.NullFloat64{Float64: w.Payment.DistanceKm, Valid: true}
		status = sql.NullString{String: string(w.Payment.Status), Valid: true}
	}

	result, err := tx.ExecContext(ctx, query, w.At, pickup, dropoff, amount, distance, status, w.HandshakeID, w.ExpectedVersion)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		err = repository.ErrConflict
		return err
	}

	trips := NewHostedTripRepositoryWithTx(tx)
	switch {
	case w.SeatDelta < 0:
		if err = trips.reserveSeats(ctx, w.HostedTripID, -w.SeatDelta); err != nil {
			return err
		}
	case w.SeatDelta > 0:
		if err = trips.releaseSeats(ctx, w.HostedTripID, w.SeatDelta); err != nil {
			return err
		}
	}

	if w.Mirror != nil {
		if err = NewRequestedTripRepositoryWithTx(tx).mirror(ctx, *w.Mirror); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Ensure HandshakeRepository implements repository.HandshakeRepository.
var _ repository.HandshakeRepository = (*HandshakeRepository)(nil)
