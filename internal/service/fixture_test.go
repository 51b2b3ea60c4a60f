package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
	"github.com/assassinoNz/CarShare-Server/internal/logging"
	"github.com/assassinoNz/CarShare-Server/internal/matcher"
	"github.com/assassinoNz/CarShare-Server/internal/mocks"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

// Coordinates around Negombo used throughout the service tests.
var (
	hostStart = domain.Coordinate{Lat: 7.0915, Lng: 79.9948}
	hostEnd   = domain.Coordinate{Lat: 7.0347, Lng: 80.0261}

	nearStart = domain.Coordinate{Lat: 7.0923, Lng: 79.9930}
	nearEnd   = domain.Coordinate{Lat: 7.0730, Lng: 80.0159}

	farStart = domain.Coordinate{Lat: 7.0936, Lng: 79.9937}
	farEnd   = domain.Coordinate{Lat: 7.0861, Lng: 80.0335}

	schedule = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
)

const (
	hostID      = "host-1"
	requesterID = "requester-1"
)

// env wires every service over one in-memory store.
type env struct {
	store     *mocks.Store
	authz     *mocks.Authorizer
	routes    *mocks.RouteProvider
	publisher *mocks.Publisher
	index     *mocks.StaticIndex

	trips      *service.TripService
	matching   *service.MatchingService
	handshakes *service.HandshakeService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	index, err := mocks.NewStaticIndex(domain.DefaultBoundingBox, 40, 40, 1)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	e := &env{
		store:     mocks.NewStore(),
		authz:     mocks.NewAuthorizer(),
		routes:    mocks.NewRouteProvider(),
		publisher: &mocks.Publisher{},
		index:     index,
	}

	logger := logging.Discard()
	routeMatcher := matcher.New(geometry.NewPlanarEngine())

	e.trips = service.NewTripService(
		e.store.HostedTrips(), e.store.RequestedTrips(), e.store.Vehicles(),
		e.authz, e.routes, e.index, 3, logger,
	)
	e.matching = service.NewMatchingService(
		e.store.HostedTrips(), e.store.RequestedTrips(), e.authz, routeMatcher, e.routes,
		service.MatchingConfig{ScheduleWindow: time.Hour, ProximityRadiusMeters: 2000, Concurrency: 4, MaxRoutes: 3},
		logger,
	)
	e.handshakes = service.NewHandshakeService(
		e.store.Handshakes(), e.store.HostedTrips(), e.store.RequestedTrips(), e.authz, routeMatcher,
		service.NewNotificationService(e.publisher, logger), domain.DefaultBoundingBox, logger,
	)
	return e
}

func (e *env) hostTrip(t *testing.T, seats int, features domain.VehicleFeatures) *domain.HostedTrip {
	t.Helper()
	trip, err := e.trips.CreateHostedTrip(context.Background(), service.CreateHostedTripRequest{
		CallerID:  hostID,
		From:      "Negombo",
		To:        "Ja-Ela",
		KeyCoords: []domain.Coordinate{hostStart, hostEnd},
		Vehicle:   &domain.Vehicle{Number: "CAB-1234", Model: "Axio", Features: features},
		Seats:     seats,
		Billing:   domain.Billing{PriceFirstKm: 100, PriceNextKm: 50},
		Schedule:  schedule,
	})
	if err != nil {
		t.Fatalf("create hosted trip: %v", err)
	}
	return trip
}

func (e *env) requestTrip(t *testing.T, callerID string, from, to domain.Coordinate, seats int) *domain.RequestedTrip {
	t.Helper()
	return e.requestTripWith(t, service.CreateRequestedTripRequest{
		CallerID:  callerID,
		KeyCoords: []domain.Coordinate{from, to},
		Seats:     seats,
		Schedule:  schedule,
	})
}

func (e *env) requestTripWith(t *testing.T, req service.CreateRequestedTripRequest) *domain.RequestedTrip {
	t.Helper()
	if req.From == "" {
		req.From, req.To = "Kochchikade", "Seeduwa"
	}
	trip, err := e.trips.CreateRequestedTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("create requested trip: %v", err)
	}
	return trip
}

// move runs one transition and fails the test on error.
func (e *env) move(t *testing.T, callerID, handshakeID string, target domain.HandshakeState, coord *domain.Coordinate) *domain.Handshake {
	t.Helper()
	h, err := e.handshakes.Transition(context.Background(), service.TransitionRequest{
		CallerID:    callerID,
		HandshakeID: handshakeID,
		Target:      target,
		Coordinate:  coord,
	})
	if err != nil {
		t.Fatalf("transition to %s by %s: %v", target, callerID, err)
	}
	return h
}

// acceptedHandshake opens a handshake from the requester and drives it to ACCEPTED.
func (e *env) acceptedHandshake(t *testing.T, hosted *domain.HostedTrip, requested *domain.RequestedTrip) *domain.Handshake {
	t.Helper()
	h, err := e.handshakes.InitHandshake(context.Background(), service.InitHandshakeRequest{
		CallerID:        requested.RequesterID,
		HostedTripID:    hosted.ID,
		RequestedTripID: requested.ID,
	})
	if err != nil {
		t.Fatalf("init handshake: %v", err)
	}
	e.move(t, requested.RequesterID, h.ID, domain.HandshakeSent, nil)
	e.move(t, hosted.HostID, h.ID, domain.HandshakeSeen, nil)
	return e.move(t, hosted.HostID, h.ID, domain.HandshakeAccepted, nil)
}

func tripIDs(trips []*domain.RequestedTrip) []string {
	out := make([]string, len(trips))
	for i, tr := range trips {
		out[i] = tr.ID
	}
	return out
}
