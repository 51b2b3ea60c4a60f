package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

func TestFindMatches_ProximityScenario(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
	near := e.requestTrip(t, "requester-near", nearStart, nearEnd, 1)
	e.requestTrip(t, "requester-far", farStart, farEnd, 1)

	matches, err := e.matching.FindMatches(context.Background(), hostID, hosted.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := tripIDs(matches)
	if len(got) != 1 || got[0] != near.ID {
		t.Errorf("expected only %s, got %v", near.ID, got)
	}
}

func TestFindMatches_Filters(t *testing.T) {
	t.Parallel()
	yes, no := true, false
	near := []domain.Coordinate{nearStart, nearEnd}
	colombo := []domain.Coordinate{{Lat: 6.9271, Lng: 79.8612}, {Lat: 6.9000, Lng: 79.9000}}

	testCases := []struct {
		name      string
		vehicle   domain.VehicleFeatures
		request   service.CreateRequestedTripRequest
		wantMatch bool
	}{
		{
			name:      "fits",
			request:   service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 4, Schedule: schedule},
			wantMatch: true,
		},
		{
			name:    "too many seats",
			request: service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 5, Schedule: schedule},
		},
		{
			name:    "outside schedule window",
			request: service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 1, Schedule: schedule.Add(90 * time.Minute)},
		},
		{
			name:      "inside schedule window",
			request:   service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 1, Schedule: schedule.Add(-45 * time.Minute)},
			wantMatch: true,
		},
		{
			name:    "needs AC",
			request: service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 1, Schedule: schedule, Features: domain.FeatureRequirements{AC: &yes}},
		},
		{
			name:      "needs AC and car has it",
			vehicle:   domain.VehicleFeatures{AC: true},
			request:   service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 1, Schedule: schedule, Features: domain.FeatureRequirements{AC: &yes}},
			wantMatch: true,
		},
		{
			name:    "refuses luggage rack",
			vehicle: domain.VehicleFeatures{Luggage: true},
			request: service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: near, Seats: 1, Schedule: schedule, Features: domain.FeatureRequirements{Luggage: &no}},
		},
		{
			name:    "own requested trip",
			request: service.CreateRequestedTripRequest{CallerID: hostID, KeyCoords: near, Seats: 1, Schedule: schedule},
		},
		{
			name:    "far away route",
			request: service.CreateRequestedTripRequest{CallerID: requesterID, KeyCoords: colombo, Seats: 1, Schedule: schedule},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			hosted := e.hostTrip(t, 4, tc.vehicle)
			requested := e.requestTripWith(t, tc.request)

			matches, err := e.matching.FindMatches(context.Background(), hostID, hosted.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := slices.Contains(tripIDs(matches), requested.ID); got != tc.wantMatch {
				t.Errorf("expected match=%v, got %v", tc.wantMatch, got)
			}
		})
	}
}

func TestFindMatches_SkipsEndedAndStaleCandidates(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
	fresh := e.requestTrip(t, "requester-fresh", nearStart, nearEnd, 1)

	stale := e.requestTrip(t, "requester-stale", nearStart, nearEnd, 1)
	staleTrip := e.store.RequestedTrip(stale.ID)
	staleTrip.Route.Overlap.GridVersion = 99
	e.store.AddRequestedTrip(staleTrip)

	ended := e.requestTrip(t, "requester-ended", nearStart, nearEnd, 1)
	endedTrip := e.store.RequestedTrip(ended.ID)
	at := schedule.Add(time.Minute)
	endedTrip.Time.Started, endedTrip.Time.Ended = &at, &at
	e.store.AddRequestedTrip(endedTrip)

	matches, err := e.matching.FindMatches(context.Background(), hostID, hosted.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tripIDs(matches); len(got) != 1 || got[0] != fresh.ID {
		t.Errorf("expected only %s, got %v", fresh.ID, got)
	}
}

func TestFindMatches_KeepsPoolOrder(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
	for i := range 10 {
		e.requestTrip(t, "requester-"+string(rune('a'+i)), nearStart, nearEnd, 1)
	}

	matches, err := e.matching.FindMatches(context.Background(), hostID, hosted.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := tripIDs(matches)
	if len(got) != 10 {
		t.Fatalf("expected 10 matches, got %d", len(got))
	}
	if !slices.IsSorted(got) {
		t.Errorf("expected pool order (sorted by id in the mock), got %v", got)
	}
}

func TestFindMatches_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not the host", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
		if _, err := e.matching.FindMatches(context.Background(), requesterID, hosted.ID); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown trip", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		if _, err := e.matching.FindMatches(context.Background(), hostID, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("hosted trip ended", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
		trip := e.store.HostedTrip(hosted.ID)
		at := schedule
		trip.Time.Started, trip.Time.Ended = &at, &at
		e.store.AddHostedTrip(trip)
		if _, err := e.matching.FindMatches(context.Background(), hostID, hosted.ID); !errors.Is(err, domain.ErrStateConflict) {
			t.Errorf("expected ErrStateConflict, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
		e.store.ListScheduledError = errors.New("connection refused")
		if _, err := e.matching.FindMatches(context.Background(), hostID, hosted.ID); !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
		e.requestTrip(t, requesterID, nearStart, nearEnd, 1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := e.matching.FindMatches(ctx, hostID, hosted.ID); !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})
}

func TestMatchDetail(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	hosted := e.hostTrip(t, 4, domain.VehicleFeatures{})
	requested := e.requestTrip(t, requesterID, nearStart, nearEnd, 1)

	detail, err := e.matching.MatchDetail(context.Background(), hostID, hosted.ID, requested.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Routes) != 1 {
		t.Fatalf("expected one route comparison, got %d", len(detail.Routes))
	}
	res := detail.Routes[0].Result
	if res.PrimaryLength <= 0 || res.SecondaryLength <= 0 {
		t.Errorf("expected positive route lengths, got %+v", res)
	}
	if res.PrimaryCoverage < 0 || res.PrimaryCoverage > 100 || res.SecondaryCoverage < 0 || res.SecondaryCoverage > 100 {
		t.Errorf("expected coverage within [0, 100], got %+v", res)
	}
	if !domain.DefaultBoundingBox.Contains(detail.Pickup) || !domain.DefaultBoundingBox.Contains(detail.Dropoff) {
		t.Errorf("expected pickup points inside the service area, got %s and %s", detail.Pickup, detail.Dropoff)
	}

	if _, err := e.matching.MatchDetail(context.Background(), requesterID, hosted.ID, requested.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for non-host, got %v", err)
	}
}
