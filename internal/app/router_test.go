package app_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/app"
	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
	"github.com/assassinoNz/CarShare-Server/internal/handler"
	"github.com/assassinoNz/CarShare-Server/internal/logging"
	"github.com/assassinoNz/CarShare-Server/internal/matcher"
	"github.com/assassinoNz/CarShare-Server/internal/mocks"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	hostID      = "host-1"
	requesterID = "requester-1"
)

var (
	hostStart = domain.Coordinate{Lat: 7.0915, Lng: 79.9948}
	hostEnd   = domain.Coordinate{Lat: 7.0347, Lng: 80.0261}
	nearStart = domain.Coordinate{Lat: 7.0923, Lng: 79.9930}
	nearEnd   = domain.Coordinate{Lat: 7.0730, Lng: 80.0159}

	schedule = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
)

type server struct {
	router http.Handler
	store  *mocks.Store
	idem   *mocks.IdempotencyStore
}

func newServer(t *testing.T) *server {
	t.Helper()

	index, err := mocks.NewStaticIndex(domain.DefaultBoundingBox, 40, 40, 1)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	store := mocks.NewStore()
	authz := mocks.NewAuthorizer()
	routes := mocks.NewRouteProvider()
	logger := logging.Discard()
	routeMatcher := matcher.New(geometry.NewPlanarEngine())

	trips := service.NewTripService(
		store.HostedTrips(), store.RequestedTrips(), store.Vehicles(),
		authz, routes, index, 3, logger,
	)
	matching := service.NewMatchingService(
		store.HostedTrips(), store.RequestedTrips(), authz, routeMatcher, routes,
		service.MatchingConfig{ScheduleWindow: time.Hour, ProximityRadiusMeters: 2000, Concurrency: 2, MaxRoutes: 3},
		logger,
	)
	handshakes := service.NewHandshakeService(
		store.Handshakes(), store.HostedTrips(), store.RequestedTrips(), authz, routeMatcher,
		service.NewNotificationService(&mocks.Publisher{}, logger), domain.DefaultBoundingBox, logger,
	)

	idem := mocks.NewIdempotencyStore()
	router := app.NewRouter(app.RouterDeps{
		HostedTripHandler:    handler.NewHostedTripHandler(trips, matching),
		RequestedTripHandler: handler.NewRequestedTripHandler(trips),
		HandshakeHandler:     handler.NewHandshakeHandler(handshakes),
		IdempotencyStore:     idem,
		Logger:               logger,
	})
	return &server{router: router, store: store, idem: idem}
}

func (s *server) call(t *testing.T, method, path, caller string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func hostedBody() map[string]any {
	return map[string]any{
		"route": map[string]any{
			"from":      "Negombo",
			"to":        "Ja-Ela",
			"keyCoords": []domain.Coordinate{hostStart, hostEnd},
		},
		"vehicle": map[string]any{"number": "CAB-1234", "features": map[string]bool{"ac": true}},
		"seats":   3,
		"billing": map[string]float64{"priceFirstKm": 100, "priceNextKm": 50},
		"time":    map[string]any{"schedule": schedule},
	}
}

func requestedBody(from, to domain.Coordinate) map[string]any {
	return map[string]any{
		"route": map[string]any{
			"from":      "Kochchikade",
			"to":        "Seeduwa",
			"keyCoords": []domain.Coordinate{from, to},
		},
		"seats": 1,
		"time":  map[string]any{"schedule": schedule},
	}
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	w := s.call(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)

	w = s.call(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, w, http.StatusOK)
}

func TestRouter_RequiresCaller(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	w := s.call(t, http.MethodPost, "/v1/hosted-trips", "", hostedBody())
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestRouter_MatchAndHandshakeFlow(t *testing.T) {
	t.Parallel()

	s := newServer(t)

	w := s.call(t, http.MethodPost, "/v1/hosted-trips", hostID, hostedBody())
	expectStatus(t, w, http.StatusCreated)
	hosted := decode[domain.HostedTrip](t, w)
	if hosted.ID == "" || hosted.RemainingSeats != 3 {
		t.Fatalf("unexpected hosted trip %+v", hosted)
	}
	if len(hosted.Route.Polylines) != 1 {
		t.Errorf("expected provider polyline, got %v", hosted.Route.Polylines)
	}

	w = s.call(t, http.MethodPost, "/v1/requested-trips", requesterID, requestedBody(nearStart, nearEnd))
	expectStatus(t, w, http.StatusCreated)
	requested := decode[domain.RequestedTrip](t, w)

	w = s.call(t, http.MethodGet, "/v1/hosted-trips/"+hosted.ID+"/matches", hostID, nil)
	expectStatus(t, w, http.StatusOK)
	matches := decode[handler.MatchesResponse](t, w)
	if len(matches.Matches) != 1 || matches.Matches[0].ID != requested.ID {
		t.Fatalf("expected the near trip to match, got %+v", matches.Matches)
	}

	w = s.call(t, http.MethodGet, "/v1/hosted-trips/"+hosted.ID+"/matches/"+requested.ID, hostID, nil)
	expectStatus(t, w, http.StatusOK)
	detail := decode[service.MatchDetail](t, w)
	if len(detail.Routes) == 0 {
		t.Error("expected at least one route match")
	}

	w = s.call(t, http.MethodPost, "/v1/handshakes", requesterID, map[string]string{
		"hostedTripId":    hosted.ID,
		"requestedTripId": requested.ID,
	})
	expectStatus(t, w, http.StatusCreated)
	hs := decode[handler.HandshakeResponse](t, w)
	if hs.State != domain.HandshakeInitiated {
		t.Fatalf("expected INITIATED, got %s", hs.State)
	}

	steps := []struct {
		caller string
		state  domain.HandshakeState
	}{
		{requesterID, domain.HandshakeSent},
		{hostID, domain.HandshakeSeen},
		{hostID, domain.HandshakeAccepted},
	}
	for _, step := range steps {
		w = s.call(t, http.MethodPost, "/v1/handshakes/"+hs.ID+"/transitions", step.caller, map[string]any{"state": step.state})
		expectStatus(t, w, http.StatusOK)
		if got := decode[handler.HandshakeResponse](t, w).State; got != step.state {
			t.Fatalf("expected %s, got %s", step.state, got)
		}
	}

	w = s.call(t, http.MethodGet, "/v1/hosted-trips/"+hosted.ID, hostID, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[domain.HostedTrip](t, w).RemainingSeats; got != 2 {
		t.Errorf("expected 2 remaining seats, got %d", got)
	}

	w = s.call(t, http.MethodGet, "/v1/handshakes/"+hs.ID, "someone-else", nil)
	expectStatus(t, w, http.StatusForbidden)
}

func TestRouter_ErrorMapping(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	w := s.call(t, http.MethodPost, "/v1/hosted-trips", hostID, hostedBody())
	expectStatus(t, w, http.StatusCreated)
	hosted := decode[domain.HostedTrip](t, w)

	w = s.call(t, http.MethodPost, "/v1/requested-trips", requesterID, requestedBody(nearStart, nearEnd))
	expectStatus(t, w, http.StatusCreated)
	requested := decode[domain.RequestedTrip](t, w)

	w = s.call(t, http.MethodPost, "/v1/handshakes", requesterID, map[string]string{
		"hostedTripId":    hosted.ID,
		"requestedTripId": requested.ID,
	})
	expectStatus(t, w, http.StatusCreated)
	hs := decode[handler.HandshakeResponse](t, w)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		status int
		code   string
	}{
		{
			name: "unknown hosted trip", method: http.MethodGet, path: "/v1/hosted-trips/missing",
			caller: hostID, status: http.StatusNotFound, code: "not_found",
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/v1/requested-trips",
			caller: requesterID, body: "not an object", status: http.StatusBadRequest, code: "validation",
		},
		{
			name: "out of bounds coordinate", method: http.MethodPost, path: "/v1/requested-trips",
			caller: requesterID, body: requestedBody(domain.Coordinate{Lat: 51.5, Lng: -0.12}, nearEnd),
			status: http.StatusBadRequest, code: "validation",
		},
		{
			name: "matches by non-host", method: http.MethodGet, path: "/v1/hosted-trips/" + hosted.ID + "/matches",
			caller: requesterID, status: http.StatusForbidden, code: "unauthorized",
		},
		{
			name: "skipped handshake state", method: http.MethodPost, path: "/v1/handshakes/" + hs.ID + "/transitions",
			caller: hostID, body: map[string]any{"state": domain.HandshakeAccepted},
			status: http.StatusConflict, code: "state_conflict",
		},
		{
			name: "transition by non-party", method: http.MethodPost, path: "/v1/handshakes/" + hs.ID + "/transitions",
			caller: "stranger", body: map[string]any{"state": domain.HandshakeAccepted},
			status: http.StatusForbidden, code: "unauthorized",
		},
		{
			name: "end before start", method: http.MethodPost, path: "/v1/hosted-trips/" + hosted.ID + "/state",
			caller: hostID, body: map[string]any{"state": domain.HostedTripStateEnded, "coordinate": hostEnd},
			status: http.StatusConflict, code: "state_conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.call(t, tt.method, tt.path, tt.caller, tt.body)
			expectStatus(t, w, tt.status)
			resp := decode[handler.ErrorResponse](t, w)
			if resp.Code != tt.code {
				t.Errorf("expected code %q, got %q (%s)", tt.code, resp.Code, resp.Error)
			}
		})
	}
}

func TestRouter_StateConflictDetails(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	hosted := decode[domain.HostedTrip](t, s.call(t, http.MethodPost, "/v1/hosted-trips", hostID, hostedBody()))
	requested := decode[domain.RequestedTrip](t, s.call(t, http.MethodPost, "/v1/requested-trips", requesterID, requestedBody(nearStart, nearEnd)))
	hs := decode[handler.HandshakeResponse](t, s.call(t, http.MethodPost, "/v1/handshakes", requesterID, map[string]string{
		"hostedTripId":    hosted.ID,
		"requestedTripId": requested.ID,
	}))

	w := s.call(t, http.MethodPost, "/v1/handshakes/"+hs.ID+"/transitions", hostID, map[string]any{"state": domain.HandshakeSeen})
	expectStatus(t, w, http.StatusConflict)

	resp := decode[handler.ErrorResponse](t, w)
	want := map[string]any{
		"current":   string(domain.HandshakeInitiated),
		"required":  string(domain.HandshakeSent),
		"attempted": string(domain.HandshakeSeen),
	}
	for k, v := range want {
		if resp.Details[k] != v {
			t.Errorf("details[%s] = %v, want %v", k, resp.Details[k], v)
		}
	}
}

func TestRouter_IdempotentCreate(t *testing.T) {
	t.Parallel()

	s := newServer(t)

	first := s.call(t, http.MethodPost, "/v1/requested-trips", requesterID, requestedBody(nearStart, nearEnd), "Idempotency-Key", "abc")
	expectStatus(t, first, http.StatusCreated)
	second := s.call(t, http.MethodPost, "/v1/requested-trips", requesterID, requestedBody(nearStart, nearEnd), "Idempotency-Key", "abc")
	expectStatus(t, second, http.StatusCreated)

	a := decode[domain.RequestedTrip](t, first)
	b := decode[domain.RequestedTrip](t, second)
	if a.ID != b.ID {
		t.Errorf("expected replayed trip %s, got %s", a.ID, b.ID)
	}
	if got := s.store.RequestedTrip(a.ID); got == nil {
		t.Fatal("expected the trip to be stored")
	}

	other := s.call(t, http.MethodPost, "/v1/requested-trips", "requester-2", requestedBody(nearStart, nearEnd), "Idempotency-Key", "abc")
	expectStatus(t, other, http.StatusCreated)
	if c := decode[domain.RequestedTrip](t, other); c.ID == a.ID || c.RequesterID != "requester-2" {
		t.Errorf("another caller must not see the cached response, got %+v", c)
	}
	if !strings.Contains(second.Header().Get("Idempotent-Replayed"), "true") {
		t.Error("expected replay marker on the repeated request")
	}
}
