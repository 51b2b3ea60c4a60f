// Package routing obtains driving routes between waypoints from an external
// routing service.
package routing

import (
	"context"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// Step is the smallest routed piece, carrying one encoded polyline.
type Step struct {
	Polyline string `json:"polyline"`
}

// Leg is the part of a route between two consecutive waypoints.
type Leg struct {
	Steps []Step `json:"steps"`
}

// Route is one candidate driving route. Its geometry is the concatenation of
// every step polyline in order.
type Route struct {
	Legs []Leg `json:"legs"`
}

// Polylines flattens the route into its ordered step polylines.
func (r Route) Polylines() []string {
	var out []string
	for _, leg := range r.Legs {
		for _, step := range leg.Steps {
			out = append(out, step.Polyline)
		}
	}
	return out
}

// Provider returns zero or more routes through an ordered waypoint list.
// No preference order is implied by the position of a route in the result.
type Provider interface {
	Routes(ctx context.Context, waypoints []domain.Coordinate) ([]Route, error)
}

// PolylineSets returns the polylines of up to limit routes. A limit of zero
// or less keeps every route.
func PolylineSets(routes []Route, limit int) [][]string {
	if limit > 0 && len(routes) > limit {
		routes = routes[:limit]
	}
	out := make([][]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.Polylines())
	}
	return out
}
