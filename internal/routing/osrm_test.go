package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

var testWaypoints = []domain.Coordinate{
	{Lat: 7.0915, Lng: 79.9948},
	{Lat: 7.0347, Lng: 80.0261},
}

func TestOSRMProvider_Routes(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"routes": [
				{"legs": [{"steps": [{"geometry": "aaa"}, {"geometry": "bbb"}]}]},
				{"legs": [{"steps": [{"geometry": "ccc"}]}]}
			]
		}`))
	}))
	defer srv.Close()

	p := NewOSRMProvider(srv.URL+"/", time.Second)
	routes, err := p.Routes(context.Background(), testWaypoints)
	if err != nil {
		t.Fatalf("Routes returned error: %v", err)
	}

	if want := "/route/v1/driving/79.994800,7.091500;80.026100,7.034700"; gotPath != want {
		t.Errorf("expected path %q (lng,lat order), got %q", want, gotPath)
	}
	if !strings.Contains(gotQuery, "steps=true") || !strings.Contains(gotQuery, "overview=false") {
		t.Errorf("expected step geometries without overview, got query %q", gotQuery)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if got := routes[0].Polylines(); len(got) != 2 || got[0] != "aaa" || got[1] != "bbb" {
		t.Errorf("unexpected polylines for route 0: %v", got)
	}
}

func TestOSRMProvider_NoRoute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": "NoRoute", "routes": []}`))
	}))
	defer srv.Close()

	routes, err := NewOSRMProvider(srv.URL, time.Second).Routes(context.Background(), testWaypoints)
	if err != nil {
		t.Fatalf("Routes returned error: %v", err)
	}
	if len(routes) != 0 {
		t.Errorf("expected no routes, got %d", len(routes))
	}
}

func TestOSRMProvider_UpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	_, err := NewOSRMProvider(srv.URL, time.Second).Routes(context.Background(), testWaypoints)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestOSRMProvider_NeedsTwoWaypoints(t *testing.T) {
	t.Parallel()

	_, err := NewOSRMProvider("http://unused", time.Second).Routes(context.Background(), testWaypoints[:1])
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
