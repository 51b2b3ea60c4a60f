package tiles

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
)

// ErrGridVersionMismatch is returned when two bitmasks from different grid
// versions are compared.
var ErrGridVersionMismatch = errors.New("tile grid version mismatch")

const minRectSide = 1e-9

type tileEntry struct {
	id   uint
	rect rtreego.Rect
}

func (t *tileEntry) Bounds() rtreego.Rect { return t.rect }

// Index computes bitmasks against one immutable grid version.
type Index struct {
	grid     *domain.TileGrid
	engine   geometry.Engine
	tree     *rtreego.Rtree
	polygons []*geom.Polygon
}

// NewIndex prepares the tile polygons and an R-tree over their rectangles.
func NewIndex(grid *domain.TileGrid, engine geometry.Engine) (*Index, error) {
	if len(grid.Tiles) != int(grid.Width()) {
		return nil, fmt.Errorf("grid v%d has %d tiles, expected %d", grid.Version, len(grid.Tiles), grid.Width())
	}
	x := &Index{
		grid:     grid,
		engine:   engine,
		tree:     rtreego.NewTree(2, 25, 50),
		polygons: make([]*geom.Polygon, len(grid.Tiles)),
	}
	for i, t := range grid.Tiles {
		if t.ID != uint(i) {
			return nil, fmt.Errorf("grid v%d: tile at position %d has id %d", grid.Version, i, t.ID)
		}
		rect, err := newRect(t.MinLng, t.MinLat, t.MaxLng, t.MaxLat)
		if err != nil {
			return nil, fmt.Errorf("grid v%d tile %d: %w", grid.Version, t.ID, err)
		}
		x.tree.Insert(&tileEntry{id: t.ID, rect: rect})
		x.polygons[i] = geometry.TilePolygon(t)
	}
	return x, nil
}

func newRect(minX, minY, maxX, maxY float64) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{minX, minY},
		[]float64{math.Max(maxX-minX, minRectSide), math.Max(maxY-minY, minRectSide)},
	)
}

// Grid returns the grid this index was built for.
func (x *Index) Grid() *domain.TileGrid { return x.grid }

// Version is the grid version stamped on every computed bitmask.
func (x *Index) Version() int64 { return x.grid.Version }

// candidates returns, in id order, the tiles whose rectangle meets the
// bounding box of at least one segment of line.
func (x *Index) candidates(line *geom.LineString) ([]uint, error) {
	seen := make(map[uint]struct{})
	coords := line.Coords()
	for i := 1; i < len(coords); i++ {
		a, b := coords[i-1], coords[i]
		rect, err := newRect(math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Max(a[0], b[0]), math.Max(a[1], b[1]))
		if err != nil {
			return nil, err
		}
		for _, s := range x.tree.SearchIntersect(rect) {
			seen[s.(*tileEntry).id] = struct{}{}
		}
	}
	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ComputeBitmask sets bit i iff the route's concatenated line intersects tile i.
// Only tiles whose rectangle meets a segment's bounding box are sent to the
// engine, in ascending id order.
func (x *Index) ComputeBitmask(ctx context.Context, polylines []string) (domain.TileOverlap, error) {
	line, err := geometry.RouteLine(polylines)
	if err != nil {
		return domain.TileOverlap{}, err
	}
	ids, err := x.candidates(line)
	if err != nil {
		return domain.TileOverlap{}, err
	}

	mask := domain.NewBitmask(x.grid.Width())
	for _, id := range ids {
		ok, err := x.engine.Intersects(ctx, x.polygons[id], line)
		if err != nil {
			return domain.TileOverlap{}, domain.Upstream("geometry", "intersects", err)
		}
		if ok {
			if err := mask.Set(id); err != nil {
				return domain.TileOverlap{}, err
			}
		}
	}
	return domain.TileOverlap{GridVersion: x.grid.Version, Mask: mask}, nil
}

// ComputeCombined ORs the bitmasks of several alternative routes, so the
// owner is never prefiltered out when any of them could overlap.
func (x *Index) ComputeCombined(ctx context.Context, routes [][]string) (domain.TileOverlap, error) {
	if len(routes) == 0 {
		return domain.TileOverlap{}, domain.NewValidationError("routes", "no route to index")
	}
	combined := domain.TileOverlap{GridVersion: x.grid.Version, Mask: domain.NewBitmask(x.grid.Width())}
	for i, r := range routes {
		o, err := x.ComputeBitmask(ctx, r)
		if err != nil {
			return domain.TileOverlap{}, fmt.Errorf("route %d: %w", i, err)
		}
		if combined.Mask, err = combined.Mask.Union(o.Mask); err != nil {
			return domain.TileOverlap{}, err
		}
	}
	return combined, nil
}

// MightOverlap is the prefilter test: true iff a AND b is nonzero. It is a
// necessary condition for two routes to overlap, never a sufficient one.
func MightOverlap(a, b domain.TileOverlap) (bool, error) {
	if a.GridVersion != b.GridVersion || a.Mask.Width() != b.Mask.Width() {
		return false, fmt.Errorf("%w: v%d (%d bits) vs v%d (%d bits)", ErrGridVersionMismatch,
			a.GridVersion, a.Mask.Width(), b.GridVersion, b.Mask.Width())
	}
	return a.Mask.Intersects(b.Mask), nil
}
