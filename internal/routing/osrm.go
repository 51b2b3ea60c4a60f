package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// OSRMProvider performs route lookups against an OSRM HTTP server.
type OSRMProvider struct {
	Endpoint string
	Client   *http.Client
}

// NewOSRMProvider creates a provider for the OSRM server at endpoint.
// Outbound calls are recorded as New Relic external segments when the
// request context carries a transaction.
func NewOSRMProvider(endpoint string, timeout time.Duration) *OSRMProvider {
	return &OSRMProvider{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Legs []struct {
			Steps []struct {
				Geometry string `json:"geometry"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Routes queries /route/v1/driving with step geometries and alternatives.
func (o *OSRMProvider) Routes(ctx context.Context, waypoints []domain.Coordinate) ([]Route, error) {
	if len(waypoints) < 2 {
		return nil, domain.NewValidationError("waypoints", "need at least 2 waypoints, got %d", len(waypoints))
	}

	// OSRM takes lng,lat pairs separated by semicolons.
	pairs := make([]string, len(waypoints))
	for i, w := range waypoints {
		pairs[i] = fmt.Sprintf("%.6f,%.6f", w.Lng, w.Lat)
	}
	url := fmt.Sprintf("%s/route/v1/driving/%s?overview=false&steps=true&alternatives=true",
		o.Endpoint, strings.Join(pairs, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "osrm", Op: "route", Err: err}
	}
	defer resp.Body.Close()

	var out osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.UpstreamError{Service: "osrm", Op: "route", Err: fmt.Errorf("decode (status %d): %w", resp.StatusCode, err)}
	}

	switch out.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, nil
	default:
		return nil, &domain.UpstreamError{Service: "osrm", Op: "route", Err: fmt.Errorf("code %q: %s", out.Code, out.Message)}
	}

	routes := make([]Route, 0, len(out.Routes))
	for _, r := range out.Routes {
		route := Route{Legs: make([]Leg, 0, len(r.Legs))}
		for _, l := range r.Legs {
			leg := Leg{Steps: make([]Step, 0, len(l.Steps))}
			for _, s := range l.Steps {
				leg.Steps = append(leg.Steps, Step{Polyline: s.Geometry})
			}
			route.Legs = append(route.Legs, leg)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

var _ Provider = (*OSRMProvider)(nil)
