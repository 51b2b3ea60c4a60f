package domain

import "time"

// Tile is one rectangular cell of a tile grid.
type Tile struct {
	ID     uint
	Column int
	Row    int
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Ring returns the closed outer ring of the tile, clockwise from the top-left corner.
func (t Tile) Ring() []Coordinate {
	return []Coordinate{
		{Lat: t.MaxLat, Lng: t.MinLng},
		{Lat: t.MaxLat, Lng: t.MaxLng},
		{Lat: t.MinLat, Lng: t.MaxLng},
		{Lat: t.MinLat, Lng: t.MinLng},
		{Lat: t.MaxLat, Lng: t.MinLng},
	}
}

// TileGrid is one version of the deployment grid. Bitmasks are only
// comparable when they were computed against the same version.
type TileGrid struct {
	Version     int64
	BoundingBox BoundingBox
	NumTilesX   int
	NumTilesY   int
	Tiles       []Tile // ordered by ID
	Active      bool
	CreatedAt   time.Time
}

// Width is the bitmask width for this grid.
func (g *TileGrid) Width() uint {
	return uint(g.NumTilesX * g.NumTilesY)
}

// TileOverlap is a bitmask together with the grid version it was computed on.
type TileOverlap struct {
	GridVersion int64   `json:"gridVersion"`
	Mask        Bitmask `json:"mask"`
}
