package routing

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// GoogleProvider handles route lookups with the Google Directions API.
type GoogleProvider struct {
	client *maps.Client
}

// NewGoogleProvider creates a GoogleProvider with the given API key.
func NewGoogleProvider(apiKey string, httpClient *http.Client) (*GoogleProvider, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func latLng(c domain.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Routes returns driving routes through waypoints. Alternatives are only
// requested without intermediate waypoints, which the API does not allow
// together.
func (g *GoogleProvider) Routes(ctx context.Context, waypoints []domain.Coordinate) ([]Route, error) {
	if len(waypoints) < 2 {
		return nil, domain.NewValidationError("waypoints", "need at least 2 waypoints, got %d", len(waypoints))
	}

	r := &maps.DirectionsRequest{
		Origin:       latLng(waypoints[0]),
		Destination:  latLng(waypoints[len(waypoints)-1]),
		Mode:         maps.TravelModeDriving,
		Alternatives: len(waypoints) == 2,
	}
	for _, w := range waypoints[1 : len(waypoints)-1] {
		r.Waypoints = append(r.Waypoints, latLng(w))
	}

	found, _, err := g.client.Directions(ctx, r)
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return nil, nil
		}
		return nil, &domain.UpstreamError{Service: "google", Op: "directions", Err: err}
	}

	routes := make([]Route, 0, len(found))
	for _, fr := range found {
		route := Route{Legs: make([]Leg, 0, len(fr.Legs))}
		for _, l := range fr.Legs {
			leg := Leg{Steps: make([]Step, 0, len(l.Steps))}
			for _, s := range l.Steps {
				leg.Steps = append(leg.Steps, Step{Polyline: s.Polyline.Points})
			}
			route.Legs = append(route.Legs, leg)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

var _ Provider = (*GoogleProvider)(nil)
