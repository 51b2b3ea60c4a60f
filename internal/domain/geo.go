package domain

import "fmt"

// Coordinate is a (latitude, longitude) pair in degrees.
// External geometry systems use (longitude, latitude); conversions happen at
// the geometry package boundary.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.7f, %.7f)", c.Lat, c.Lng)
}

// BoundingBox is the deployment region. Every stored coordinate must fall inside it.
type BoundingBox struct {
	LatTop    float64
	LatBottom float64
	LongLeft  float64
	LongRight float64
}

// DefaultBoundingBox covers Sri Lanka.
var DefaultBoundingBox = BoundingBox{
	LatTop:    10.0350000,
	LatBottom: 5.7190000,
	LongLeft:  79.4219890,
	LongRight: 82.0810141,
}

// Width is the longitudinal extent in degrees.
func (b BoundingBox) Width() float64 { return b.LongRight - b.LongLeft }

// Height is the latitudinal extent in degrees.
func (b BoundingBox) Height() float64 { return b.LatTop - b.LatBottom }

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.LatBottom && c.Lat <= b.LatTop &&
		c.Lng >= b.LongLeft && c.Lng <= b.LongRight
}

// Check returns a ValidationError when the box itself is malformed.
func (b BoundingBox) Check() error {
	if b.LatTop <= b.LatBottom {
		return NewValidationError("bounding_box", "lat top %.7f must be above lat bottom %.7f", b.LatTop, b.LatBottom)
	}
	if b.LongRight <= b.LongLeft {
		return NewValidationError("bounding_box", "long right %.7f must be east of long left %.7f", b.LongRight, b.LongLeft)
	}
	return nil
}

// ValidateCoordinate rejects coordinates outside the box. The deployment region
// also satisfies lat < lng everywhere, which catches swapped axes.
func (b BoundingBox) ValidateCoordinate(field string, c Coordinate) error {
	if c.Lat >= c.Lng {
		return NewValidationError(field, "coordinate %s has latitude not below longitude (swapped axes?)", c)
	}
	if !b.Contains(c) {
		return NewValidationError(field, "coordinate %s is outside the service area", c)
	}
	return nil
}

// ValidateCoordinates validates every coordinate and requires at least min of them.
func (b BoundingBox) ValidateCoordinates(field string, coords []Coordinate, min int) error {
	if len(coords) < min {
		return NewValidationError(field, "need at least %d coordinates, got %d", min, len(coords))
	}
	for i, c := range coords {
		if err := b.ValidateCoordinate(fmt.Sprintf("%s[%d]", field, i), c); err != nil {
			return err
		}
	}
	return nil
}
