// Package geometry builds route geometries and answers spatial queries about
// them. Geometries use (longitude, latitude) axis order and SRID 4326;
// lengths and distances are geodesic metres.
package geometry

import (
	"context"

	"github.com/twpayne/go-geom"
)

// Engine is the spatial query service the matcher and tile index rely on.
type Engine interface {
	// Length returns the length of a line geometry in metres.
	Length(ctx context.Context, g geom.T) (float64, error)

	// Intersection returns the linear part of the intersection of two line
	// geometries. Disjoint inputs yield an empty MultiLineString.
	Intersection(ctx context.Context, a, b geom.T) (geom.T, error)

	// Distance returns the shortest distance in metres between p and g.
	Distance(ctx context.Context, p *geom.Point, g geom.T) (float64, error)

	// ClosestPoint returns the point of g nearest to p.
	ClosestPoint(ctx context.Context, g geom.T, p *geom.Point) (*geom.Point, error)

	// Intersects reports whether a and b share at least one point.
	Intersects(ctx context.Context, a, b geom.T) (bool, error)
}
