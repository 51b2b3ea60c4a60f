// Package matcher measures how two routes overlap and how close a point
// lies to a route.
package matcher

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
)

// Result describes the overlap of a primary and a secondary route.
// PrimaryCoverage is the share of the secondary route covered by the
// intersection and SecondaryCoverage the share of the primary route, both in
// percent.
type Result struct {
	PrimaryLength         float64  `json:"primaryLength"`
	SecondaryLength       float64  `json:"secondaryLength"`
	IntersectionLength    float64  `json:"intersectionLength"`
	PrimaryCoverage       float64  `json:"primaryCoverage"`
	SecondaryCoverage     float64  `json:"secondaryCoverage"`
	IntersectionPolylines []string `json:"intersectionPolylines"`

	Intersection geom.T `json:"-"`
}

// RouteMatcher runs overlap and proximity queries through a geometry engine.
type RouteMatcher struct {
	engine geometry.Engine
}

// New creates a RouteMatcher.
func New(engine geometry.Engine) *RouteMatcher {
	return &RouteMatcher{engine: engine}
}

// Match measures both routes and their intersection. Degenerate routes fail
// with a ValidationError instead of producing NaN coverage.
func (m *RouteMatcher) Match(ctx context.Context, primary, secondary []string) (*Result, error) {
	a, err := geometry.RouteLine(primary)
	if err != nil {
		return nil, err
	}
	b, err := geometry.RouteLine(secondary)
	if err != nil {
		return nil, err
	}

	lenA, err := m.length(ctx, "primary", a)
	if err != nil {
		return nil, err
	}
	lenB, err := m.length(ctx, "secondary", b)
	if err != nil {
		return nil, err
	}

	inter, err := m.engine.Intersection(ctx, a, b)
	if err != nil {
		return nil, domain.Upstream("geometry", "intersection", err)
	}
	lenI, err := m.engine.Length(ctx, inter)
	if err != nil {
		return nil, domain.Upstream("geometry", "length", err)
	}

	return &Result{
		PrimaryLength:         lenA,
		SecondaryLength:       lenB,
		IntersectionLength:    lenI,
		PrimaryCoverage:       coverage(lenI, lenB),
		SecondaryCoverage:     coverage(lenI, lenA),
		IntersectionPolylines: encodeLines(inter),
		Intersection:          inter,
	}, nil
}

func (m *RouteMatcher) length(ctx context.Context, field string, line *geom.LineString) (float64, error) {
	l, err := m.engine.Length(ctx, line)
	if err != nil {
		return 0, domain.Upstream("geometry", "length", err)
	}
	if l <= 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return 0, domain.NewValidationError(field, "degenerate route of length %v", l)
	}
	return l, nil
}

// coverage is part/whole in percent, clamped to [0, 100].
func coverage(part, whole float64) float64 {
	c := part / whole * 100
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

func encodeLines(g geom.T) []string {
	var lines []*geom.LineString
	switch t := g.(type) {
	case *geom.LineString:
		lines = append(lines, t)
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			lines = append(lines, t.LineString(i))
		}
	}
	out := make([]string, 0, len(lines))
	for _, ls := range lines {
		coords := make([]domain.Coordinate, 0, ls.NumCoords())
		for _, c := range ls.Coords() {
			coords = append(coords, domain.Coordinate{Lat: c[1], Lng: c[0]})
		}
		out = append(out, geometry.EncodePolyline(coords))
	}
	return out
}

// IsWithinProximity reports whether c is at most radiusMeters from the route.
func (m *RouteMatcher) IsWithinProximity(ctx context.Context, c domain.Coordinate, radiusMeters float64, polylines []string) (bool, error) {
	line, err := geometry.RouteLine(polylines)
	if err != nil {
		return false, err
	}
	d, err := m.engine.Distance(ctx, geometry.Point(c), line)
	if err != nil {
		return false, domain.Upstream("geometry", "distance", err)
	}
	return d <= radiusMeters, nil
}

// ClosestPoint returns the point of the route nearest to c.
func (m *RouteMatcher) ClosestPoint(ctx context.Context, c domain.Coordinate, polylines []string) (domain.Coordinate, error) {
	line, err := geometry.RouteLine(polylines)
	if err != nil {
		return domain.Coordinate{}, err
	}
	p, err := m.engine.ClosestPoint(ctx, line, geometry.Point(c))
	if err != nil {
		return domain.Coordinate{}, domain.Upstream("geometry", "closest_point", err)
	}
	return geometry.ToCoordinate(p), nil
}
