package geometry

import (
	"context"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

const earthRadiusMeters = 6371000.0

// intersector decides segment intersections with exact orientation tests.
var intersector = lineintersector.RobustLineIntersector{}

// PlanarEngine answers spatial queries in process. Intersection tests run in
// degree space on go-geom's robust line intersector; lengths use the haversine
// formula and point distances a local equirectangular projection, which is
// accurate to well under a metre at the scale of a city route. It serves
// deployments without PostGIS and tests.
type PlanarEngine struct{}

// NewPlanarEngine returns an in-process engine.
func NewPlanarEngine() *PlanarEngine { return &PlanarEngine{} }

type segment struct {
	a, b geom.Coord
}

func segmentsOf(g geom.T) ([]segment, error) {
	var out []segment
	appendLine := func(coords []geom.Coord) {
		for i := 1; i < len(coords); i++ {
			out = append(out, segment{a: coords[i-1], b: coords[i]})
		}
	}
	switch t := g.(type) {
	case *geom.LineString:
		appendLine(t.Coords())
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			appendLine(t.LineString(i).Coords())
		}
	case *geom.Polygon:
		for i := 0; i < t.NumLinearRings(); i++ {
			appendLine(t.LinearRing(i).Coords())
		}
	case *geom.Point:
	default:
		return nil, fmt.Errorf("planar engine: unsupported geometry %T", g)
	}
	return out, nil
}

func vertices(g geom.T) []geom.Coord {
	flat, stride := g.FlatCoords(), g.Stride()
	if stride == 0 {
		return nil
	}
	out := make([]geom.Coord, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, geom.Coord{flat[i], flat[i+1]})
	}
	return out
}

func haversine(a, b geom.Coord) float64 {
	lat1, lat2 := a[1]*math.Pi/180, b[1]*math.Pi/180
	dLat := lat2 - lat1
	dLng := (b[0] - a[0]) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Length sums the great-circle length of every segment.
func (e *PlanarEngine) Length(_ context.Context, g geom.T) (float64, error) {
	segs, err := segmentsOf(g)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, s := range segs {
		total += haversine(s.a, s.b)
	}
	return total, nil
}

// Intersection returns the collinear overlaps between the segments of a and b.
// Segments that only cross or touch at a point contribute nothing.
func (e *PlanarEngine) Intersection(_ context.Context, a, b geom.T) (geom.T, error) {
	sa, err := segmentsOf(a)
	if err != nil {
		return nil, err
	}
	sb, err := segmentsOf(b)
	if err != nil {
		return nil, err
	}
	out := geom.NewMultiLineString(geom.XY)
	for _, s := range sa {
		for _, t := range sb {
			res := lineintersector.LineIntersectsLine(intersector, s.a, s.b, t.a, t.b)
			if res.Type() != lineintersection.CollinearIntersection {
				continue
			}
			ends := res.Intersection()
			from, to := geom.Coord{ends[0][0], ends[0][1]}, geom.Coord{ends[1][0], ends[1][1]}
			if from.Equal(geom.XY, to) {
				continue
			}
			ls := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{from, to})
			if err := out.Push(ls); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// inPolygon reports whether p lies inside or on the outer ring of poly.
func inPolygon(p geom.Coord, poly *geom.Polygon) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	return xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords())
}

// Intersects handles points, lines and polygons in any combination.
func (e *PlanarEngine) Intersects(_ context.Context, a, b geom.T) (bool, error) {
	if pa, ok := a.(*geom.Point); ok {
		return pointTouches(pa.Coords(), b)
	}
	if pb, ok := b.(*geom.Point); ok {
		return pointTouches(pb.Coords(), a)
	}

	sa, err := segmentsOf(a)
	if err != nil {
		return false, err
	}
	sb, err := segmentsOf(b)
	if err != nil {
		return false, err
	}
	for _, s := range sa {
		for _, t := range sb {
			res := lineintersector.LineIntersectsLine(intersector, s.a, s.b, t.a, t.b)
			if res.HasIntersection() {
				return true, nil
			}
		}
	}
	if poly, ok := a.(*geom.Polygon); ok {
		for _, v := range vertices(b) {
			if inPolygon(v, poly) {
				return true, nil
			}
		}
	}
	if poly, ok := b.(*geom.Polygon); ok {
		for _, v := range vertices(a) {
			if inPolygon(v, poly) {
				return true, nil
			}
		}
	}
	return false, nil
}

func pointTouches(p geom.Coord, g geom.T) (bool, error) {
	if poly, ok := g.(*geom.Polygon); ok && inPolygon(p, poly) {
		return true, nil
	}
	if q, ok := g.(*geom.Point); ok {
		return q.Coords().Equal(geom.XY, p), nil
	}
	segs, err := segmentsOf(g)
	if err != nil {
		return false, err
	}
	for _, s := range segs {
		if lineintersector.PointIntersectsLine(intersector, p, s.a, s.b) {
			return true, nil
		}
	}
	return false, nil
}

// project maps c into metres on a plane tangent at origin.
func project(origin, c geom.Coord) (float64, float64) {
	k := earthRadiusMeters * math.Pi / 180
	return (c[0] - origin[0]) * k * math.Cos(origin[1]*math.Pi/180), (c[1] - origin[1]) * k
}

// nearestOnSegment returns the parameter of the point of s closest to p and its distance in metres.
func nearestOnSegment(p geom.Coord, s segment) (float64, float64) {
	ax, ay := project(p, s.a)
	bx, by := project(p, s.b)
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	u := 0.0
	if l2 > 0 {
		u = math.Max(0, math.Min(1, -(ax*dx+ay*dy)/l2))
	}
	x, y := ax+u*dx, ay+u*dy
	return u, math.Hypot(x, y)
}

// Distance returns the distance from p to the nearest point of g.
func (e *PlanarEngine) Distance(_ context.Context, p *geom.Point, g geom.T) (float64, error) {
	pc := p.Coords()
	if q, ok := g.(*geom.Point); ok {
		return haversine(pc, q.Coords()), nil
	}
	if poly, ok := g.(*geom.Polygon); ok && inPolygon(pc, poly) {
		return 0, nil
	}
	segs, err := segmentsOf(g)
	if err != nil {
		return 0, err
	}
	if len(segs) == 0 {
		return 0, fmt.Errorf("planar engine: empty geometry")
	}
	best := math.Inf(1)
	for _, s := range segs {
		if _, d := nearestOnSegment(pc, s); d < best {
			best = d
		}
	}
	return best, nil
}

// ClosestPoint returns the point of g nearest to p.
func (e *PlanarEngine) ClosestPoint(_ context.Context, g geom.T, p *geom.Point) (*geom.Point, error) {
	pc := p.Coords()
	if q, ok := g.(*geom.Point); ok {
		return q, nil
	}
	segs, err := segmentsOf(g)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("planar engine: empty geometry")
	}
	best, bestU, bestSeg := math.Inf(1), 0.0, segs[0]
	for _, s := range segs {
		if u, d := nearestOnSegment(pc, s); d < best {
			best, bestU, bestSeg = d, u, s
		}
	}
	c := geom.Coord{
		bestSeg.a[0] + bestU*(bestSeg.b[0]-bestSeg.a[0]),
		bestSeg.a[1] + bestU*(bestSeg.b[1]-bestSeg.a[1]),
	}
	return geom.NewPoint(geom.XY).MustSetCoords(c), nil
}

var _ Engine = (*PlanarEngine)(nil)
