package tiles

import (
	"context"
	"errors"
	"testing"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
)

func newTestIndex(t *testing.T, version int64, nx, ny int) (*Index, geometry.Engine) {
	t.Helper()
	g, err := BuildGrid(domain.DefaultBoundingBox, nx, ny)
	if err != nil {
		t.Fatalf("BuildGrid returned error: %v", err)
	}
	g.Version = version
	engine := geometry.NewPlanarEngine()
	x, err := NewIndex(g, engine)
	if err != nil {
		t.Fatalf("NewIndex returned error: %v", err)
	}
	return x, engine
}

func route(coords ...domain.Coordinate) []string {
	return []string{geometry.EncodePolyline(coords)}
}

func TestComputeBitmask_MatchesExhaustiveScan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	x, engine := newTestIndex(t, 1, 20, 20)

	polylines := route(
		domain.Coordinate{Lat: 6.9271, Lng: 79.8612},
		domain.Coordinate{Lat: 7.2906, Lng: 80.6337},
		domain.Coordinate{Lat: 8.3114, Lng: 80.4037},
	)
	overlap, err := x.ComputeBitmask(ctx, polylines)
	if err != nil {
		t.Fatalf("ComputeBitmask returned error: %v", err)
	}
	if overlap.GridVersion != 1 || overlap.Mask.Width() != 400 {
		t.Fatalf("expected version 1 and width 400, got v%d width %d", overlap.GridVersion, overlap.Mask.Width())
	}
	if overlap.Mask.IsZero() {
		t.Fatal("expected the route to cross at least one tile")
	}

	line, err := geometry.RouteLine(polylines)
	if err != nil {
		t.Fatalf("RouteLine returned error: %v", err)
	}
	for _, tile := range x.Grid().Tiles {
		hit, err := engine.Intersects(ctx, geometry.TilePolygon(tile), line)
		if err != nil {
			t.Fatalf("Intersects returned error: %v", err)
		}
		if hit != overlap.Mask.Test(tile.ID) {
			t.Errorf("tile %d: engine says %v, bitmask says %v", tile.ID, hit, overlap.Mask.Test(tile.ID))
		}
	}
}

func TestMightOverlap_DisjointRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	x, _ := newTestIndex(t, 1, 20, 20)

	north, err := x.ComputeBitmask(ctx, route(
		domain.Coordinate{Lat: 9.6615, Lng: 80.0255},
		domain.Coordinate{Lat: 9.3803, Lng: 80.3770},
	))
	if err != nil {
		t.Fatalf("ComputeBitmask returned error: %v", err)
	}
	south, err := x.ComputeBitmask(ctx, route(
		domain.Coordinate{Lat: 6.0535, Lng: 80.2210},
		domain.Coordinate{Lat: 5.9485, Lng: 80.5353},
	))
	if err != nil {
		t.Fatalf("ComputeBitmask returned error: %v", err)
	}

	ok, err := MightOverlap(north, south)
	if err != nil {
		t.Fatalf("MightOverlap returned error: %v", err)
	}
	if ok {
		t.Error("routes at opposite ends of the island should not share a tile")
	}
	if ok, _ := MightOverlap(north, north); !ok {
		t.Error("a route must overlap itself")
	}
}

func TestComputeCombined_IsUnionOfRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	x, _ := newTestIndex(t, 1, 20, 20)

	a := route(domain.Coordinate{Lat: 9.6615, Lng: 80.0255}, domain.Coordinate{Lat: 9.3803, Lng: 80.3770})
	b := route(domain.Coordinate{Lat: 6.0535, Lng: 80.2210}, domain.Coordinate{Lat: 5.9485, Lng: 80.5353})

	ma, _ := x.ComputeBitmask(ctx, a)
	mb, _ := x.ComputeBitmask(ctx, b)
	combined, err := x.ComputeCombined(ctx, [][]string{a, b})
	if err != nil {
		t.Fatalf("ComputeCombined returned error: %v", err)
	}
	want, _ := ma.Mask.Union(mb.Mask)
	if !combined.Mask.Equal(want) {
		t.Errorf("expected union %s, got %s", want, combined.Mask)
	}
	if ok, _ := MightOverlap(combined, ma); !ok {
		t.Error("combined mask must overlap each of its routes")
	}

	if _, err := x.ComputeCombined(ctx, nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for no routes, got %v", err)
	}
}

func TestMightOverlap_RefusesMixedVersions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v1, _ := newTestIndex(t, 1, 20, 20)
	v2, _ := newTestIndex(t, 2, 20, 20)

	r := route(domain.Coordinate{Lat: 7.0915, Lng: 79.9948}, domain.Coordinate{Lat: 7.0347, Lng: 80.0261})
	a, _ := v1.ComputeBitmask(ctx, r)
	b, _ := v2.ComputeBitmask(ctx, r)

	if _, err := MightOverlap(a, b); !errors.Is(err, ErrGridVersionMismatch) {
		t.Errorf("expected ErrGridVersionMismatch, got %v", err)
	}
}

func TestComputeBitmask_DegenerateRoute(t *testing.T) {
	t.Parallel()
	x, _ := newTestIndex(t, 1, 5, 5)

	p := domain.Coordinate{Lat: 7.0915, Lng: 79.9948}
	if _, err := x.ComputeBitmask(context.Background(), route(p, p)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
