package geometry

import (
	"googlemaps.github.io/maps"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// DecodePolyline decodes one 1e-5 precision encoded polyline.
func DecodePolyline(encoded string) ([]domain.Coordinate, error) {
	points, err := maps.DecodePolyline(encoded)
	if err != nil {
		return nil, domain.NewValidationError("polyline", "%v", err)
	}
	coords := make([]domain.Coordinate, len(points))
	for i, p := range points {
		coords[i] = domain.Coordinate{Lat: p.Lat, Lng: p.Lng}
	}
	return coords, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(coords []domain.Coordinate) string {
	path := make([]maps.LatLng, len(coords))
	for i, c := range coords {
		path[i] = maps.LatLng{Lat: c.Lat, Lng: c.Lng}
	}
	return maps.Encode(path)
}

// DecodeRoute concatenates the step polylines of a route in order. Steps
// with fewer than two points carry no geometry and are skipped; a vertex
// repeated across a step boundary is kept once.
func DecodeRoute(polylines []string) ([]domain.Coordinate, error) {
	var route []domain.Coordinate
	for _, p := range polylines {
		coords, err := DecodePolyline(p)
		if err != nil {
			return nil, err
		}
		if len(coords) < 2 {
			continue
		}
		if n := len(route); n > 0 && route[n-1] == coords[0] {
			coords = coords[1:]
		}
		route = append(route, coords...)
	}
	return route, nil
}
