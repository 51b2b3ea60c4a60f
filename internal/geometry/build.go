package geometry

import (
	"github.com/twpayne/go-geom"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

func coord(c domain.Coordinate) geom.Coord {
	return geom.Coord{c.Lng, c.Lat}
}

// ToCoordinate converts an XY point back to the internal (lat, lng) order.
func ToCoordinate(p *geom.Point) domain.Coordinate {
	return domain.Coordinate{Lat: p.Y(), Lng: p.X()}
}

// Point builds a point geometry.
func Point(c domain.Coordinate) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(coord(c))
}

// LineString builds a line geometry. It fails with a ValidationError when the
// coordinates do not span at least two distinct positions.
func LineString(coords []domain.Coordinate) (*geom.LineString, error) {
	if len(coords) < 2 {
		return nil, domain.NewValidationError("route", "degenerate geometry: %d coordinate(s)", len(coords))
	}
	distinct := false
	flat := make([]geom.Coord, len(coords))
	for i, c := range coords {
		flat[i] = coord(c)
		if c != coords[0] {
			distinct = true
		}
	}
	if !distinct {
		return nil, domain.NewValidationError("route", "degenerate geometry: all coordinates equal")
	}
	return geom.NewLineString(geom.XY).MustSetCoords(flat), nil
}

// RouteLine decodes route polylines and builds their concatenated line.
func RouteLine(polylines []string) (*geom.LineString, error) {
	coords, err := DecodeRoute(polylines)
	if err != nil {
		return nil, err
	}
	return LineString(coords)
}

// Polygon builds a polygon from one closed ring.
func Polygon(ring []domain.Coordinate) *geom.Polygon {
	flat := make([]geom.Coord, len(ring))
	for i, c := range ring {
		flat[i] = coord(c)
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{flat})
}

// TilePolygon builds the polygon of a grid tile.
func TilePolygon(t domain.Tile) *geom.Polygon {
	return Polygon(t.Ring())
}

// GreatCircleMeters is the haversine distance between two coordinates.
func GreatCircleMeters(a, b domain.Coordinate) float64 {
	return haversine(coord(a), coord(b))
}
