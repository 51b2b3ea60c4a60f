// Package tiles implements the coarse spatial prefilter: a fixed grid of
// rectangular tiles over the deployment area and per-route bitmasks of the
// tiles a route crosses.
//
// Tile ids are column-major. Column 0 starts at the western edge and row 0
// at the northern edge, so tile id = column*numTilesY + row, and bit i of a
// bitmask always refers to tile id i of the same grid version.
package tiles

import (
	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// BuildGrid divides the bounding box into numTilesX equal columns and
// numTilesY equal rows. The returned grid has no version yet; the grid
// repository assigns one when it is persisted.
func BuildGrid(box domain.BoundingBox, numTilesX, numTilesY int) (*domain.TileGrid, error) {
	if err := box.Check(); err != nil {
		return nil, err
	}
	if numTilesX <= 0 || numTilesY <= 0 {
		return nil, domain.NewValidationError("grid", "tile counts must be positive, got %dx%d", numTilesX, numTilesY)
	}

	tileW := box.Width() / float64(numTilesX)
	tileH := box.Height() / float64(numTilesY)

	tiles := make([]domain.Tile, 0, numTilesX*numTilesY)
	for c := 0; c < numTilesX; c++ {
		minLng := box.LongLeft + float64(c)*tileW
		maxLng := box.LongLeft + float64(c+1)*tileW
		if c == numTilesX-1 {
			maxLng = box.LongRight
		}
		for r := 0; r < numTilesY; r++ {
			maxLat := box.LatTop - float64(r)*tileH
			minLat := box.LatTop - float64(r+1)*tileH
			if r == numTilesY-1 {
				minLat = box.LatBottom
			}
			tiles = append(tiles, domain.Tile{
				ID:     uint(c*numTilesY + r),
				Column: c,
				Row:    r,
				MinLat: minLat,
				MaxLat: maxLat,
				MinLng: minLng,
				MaxLng: maxLng,
			})
		}
	}

	return &domain.TileGrid{
		BoundingBox: box,
		NumTilesX:   numTilesX,
		NumTilesY:   numTilesY,
		Tiles:       tiles,
	}, nil
}

// TileAt returns the id of the tile containing c, if c is inside the grid.
func TileAt(g *domain.TileGrid, c domain.Coordinate) (uint, bool) {
	box := g.BoundingBox
	if !box.Contains(c) {
		return 0, false
	}
	col := int((c.Lng - box.LongLeft) / box.Width() * float64(g.NumTilesX))
	row := int((box.LatTop - c.Lat) / box.Height() * float64(g.NumTilesY))
	if col >= g.NumTilesX {
		col = g.NumTilesX - 1
	}
	if row >= g.NumTilesY {
		row = g.NumTilesY - 1
	}
	return uint(col*g.NumTilesY + row), true
}
