//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/assassinoNz/CarShare-Server/internal/app"
	"github.com/assassinoNz/CarShare-Server/internal/config"
	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/logging"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
	"github.com/assassinoNz/CarShare-Server/internal/repository/postgres"
)

// Needs a PostGIS-enabled database:
//
//	DATABASE_HOST=localhost go test -tags integration ./internal/repository/postgres/

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("DATABASE_HOST") == "" {
		t.Skip("DATABASE_HOST not set")
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := app.MigrateUp(cfg.Database, logging.Discard()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func newHostedTrip(t *testing.T, db *sql.DB, seats int, gridVersion int64) *domain.HostedTrip {
	t.Helper()
	trip := &domain.HostedTrip{
		ID:     uuid.New().String(),
		HostID: "host-" + uuid.New().String(),
		Route: domain.HostedRoute{
			KeyCoords: []domain.Coordinate{{Lat: 7.09, Lng: 79.99}, {Lat: 7.03, Lng: 80.02}},
			Polylines: []string{"_p~iF~ps|U_ulLnnqC"},
			Overlap:   domain.TileOverlap{GridVersion: gridVersion, Mask: domain.NewBitmask(16)},
		},
		Seats:          seats,
		RemainingSeats: seats,
		Time:           domain.TripTime{Schedule: now().Add(time.Hour)},
		CreatedAt:      now(),
	}
	if err := postgres.NewHostedTripRepository(db).Create(context.Background(), trip); err != nil {
		t.Fatalf("create hosted trip: %v", err)
	}
	return trip
}

// seenHandshake links a new requested trip to hosted and moves it to SEEN.
func seenHandshake(t *testing.T, db *sql.DB, hosted *domain.HostedTrip, seats int) *domain.Handshake {
	t.Helper()
	ctx := context.Background()

	requested := &domain.RequestedTrip{
		ID:          uuid.New().String(),
		RequesterID: "requester-" + uuid.New().String(),
		Route: domain.RequestedRoute{
			KeyCoords: []domain.Coordinate{{Lat: 7.09, Lng: 79.99}, {Lat: 7.07, Lng: 80.01}},
			Overlap:   domain.TileOverlap{GridVersion: hosted.Route.Overlap.GridVersion, Mask: domain.NewBitmask(16)},
		},
		Seats:     seats,
		Time:      domain.TripTime{Schedule: hosted.Time.Schedule},
		CreatedAt: now(),
	}
	if err := postgres.NewRequestedTripRepository(db).Create(ctx, requested); err != nil {
		t.Fatalf("create requested trip: %v", err)
	}

	h := &domain.Handshake{
		ID:              uuid.New().String(),
		HostedTripID:    hosted.ID,
		RequestedTripID: requested.ID,
		SenderID:        requested.RequesterID,
		RecipientID:     hosted.HostID,
		CreatedAt:       now(),
	}
	h.Time.Set(domain.HandshakeInitiated, now())
	handshakes := postgres.NewHandshakeRepository(db)
	if err := handshakes.Create(ctx, h); err != nil {
		t.Fatalf("create handshake: %v", err)
	}
	for version, state := range []domain.HandshakeState{domain.HandshakeSent, domain.HandshakeSeen} {
		if err := handshakes.ApplyTransition(ctx, repository.TransitionWrite{
			HandshakeID: h.ID, ExpectedVersion: version, State: state, At: now(),
		}); err != nil {
			t.Fatalf("apply %s: %v", state, err)
		}
	}
	got, err := handshakes.GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("get handshake: %v", err)
	}
	return got
}

func TestApplyTransition_ConcurrentAcceptsNeverOverbook(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	handshakes := postgres.NewHandshakeRepository(db)

	hosted := newHostedTrip(t, db, 3, 1)
	first := seenHandshake(t, db, hosted, 2)
	second := seenHandshake(t, db, hosted, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, h := range []*domain.Handshake{first, second} {
		wg.Add(1)
		go func(i int, h *domain.Handshake) {
			defer wg.Done()
			errs[i] = handshakes.ApplyTransition(ctx, repository.TransitionWrite{
				HandshakeID:     h.ID,
				ExpectedVersion: h.Version,
				State:           domain.HandshakeAccepted,
				At:              now(),
				HostedTripID:    hosted.ID,
				SeatDelta:       -2,
			})
		}(i, h)
	}
	wg.Wait()

	accepted, refused := 0, 0
	for i, err := range errs {
		var capacity *domain.CapacityError
		switch {
		case err == nil:
			accepted++
		case errors.As(err, &capacity):
			refused++
			h, getErr := handshakes.GetByID(ctx, []*domain.Handshake{first, second}[i].ID)
			if getErr != nil {
				t.Fatalf("get handshake: %v", getErr)
			}
			if h.Time.Has(domain.HandshakeAccepted) || h.Version != 2 {
				t.Errorf("refused accept must roll back the handshake write, got version %d", h.Version)
			}
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 || refused != 1 {
		t.Fatalf("expected one accept and one capacity refusal, got %d and %d", accepted, refused)
	}

	trip, err := postgres.NewHostedTripRepository(db).GetByID(ctx, hosted.ID)
	if err != nil {
		t.Fatalf("get hosted trip: %v", err)
	}
	if trip.RemainingSeats != 1 {
		t.Errorf("expected 1 remaining seat, got %d", trip.RemainingSeats)
	}
}

func TestApplyTransition_ConditionalWrite(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	handshakes := postgres.NewHandshakeRepository(db)

	hosted := newHostedTrip(t, db, 2, 1)
	h := seenHandshake(t, db, hosted, 1)

	tests := []struct {
		name  string
		write repository.TransitionWrite
	}{
		{"stale version", repository.TransitionWrite{HandshakeID: h.ID, ExpectedVersion: h.Version - 1, State: domain.HandshakeAccepted}},
		{"predecessor missing", repository.TransitionWrite{HandshakeID: h.ID, ExpectedVersion: h.Version, State: domain.HandshakeConfirmedAccepted}},
		{"already set", repository.TransitionWrite{HandshakeID: h.ID, ExpectedVersion: h.Version, State: domain.HandshakeSeen}},
	}
	for _, tt := range tests {
		tt.write.At = now()
		if err := handshakes.ApplyTransition(ctx, tt.write); !errors.Is(err, repository.ErrConflict) {
			t.Errorf("%s: expected ErrConflict, got %v", tt.name, err)
		}
	}

	// Accept, cancel, and the seat comes back without exceeding capacity.
	if err := handshakes.ApplyTransition(ctx, repository.TransitionWrite{
		HandshakeID: h.ID, ExpectedVersion: h.Version, State: domain.HandshakeAccepted, At: now(),
		HostedTripID: hosted.ID, SeatDelta: -1,
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := handshakes.ApplyTransition(ctx, repository.TransitionWrite{
		HandshakeID: h.ID, ExpectedVersion: h.Version + 1, State: domain.HandshakeCancelled, At: now(),
		HostedTripID: hosted.ID, SeatDelta: 5,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	trip, err := postgres.NewHostedTripRepository(db).GetByID(ctx, hosted.ID)
	if err != nil {
		t.Fatalf("get hosted trip: %v", err)
	}
	if trip.RemainingSeats != 2 {
		t.Errorf("expected seats restored to capacity 2, got %d", trip.RemainingSeats)
	}

	if err := handshakes.ApplyTransition(ctx, repository.TransitionWrite{
		HandshakeID: h.ID, ExpectedVersion: h.Version + 2, State: domain.HandshakeConfirmedAccepted, At: now(),
	}); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("expected no moves after cancel, got %v", err)
	}
}

func TestListStaleOverlap_PagesPastEveryRow(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	trips := postgres.NewHostedTripRepository(db)

	// A version no other test uses keeps the stale set predictable.
	staleVersion := time.Now().UnixNano()
	var want []string
	for i := 0; i < 5; i++ {
		want = append(want, newHostedTrip(t, db, 1, staleVersion).ID)
	}
	sort.Strings(want)
	mine := make(map[string]bool, len(want))
	for _, id := range want {
		mine[id] = true
	}

	var got []string
	after := ""
	for {
		batch, err := trips.ListStaleOverlap(ctx, staleVersion+1, after, 2)
		if err != nil {
			t.Fatalf("list stale: %v", err)
		}
		for _, trip := range batch {
			if trip.ID <= after {
				t.Fatalf("cursor went backwards: %s after %s", trip.ID, after)
			}
			after = trip.ID
			if mine[trip.ID] {
				got = append(got, trip.ID)
			}
		}
		if len(batch) < 2 {
			break
		}
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d own trips, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
