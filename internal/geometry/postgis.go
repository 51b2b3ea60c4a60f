package geometry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// Querier is the subset of *sql.DB the PostGIS engine needs.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostGISEngine runs spatial queries on a PostGIS-enabled PostgreSQL server.
type PostGISEngine struct {
	q Querier
}

// NewPostGISEngine creates an engine backed by db.
func NewPostGISEngine(db Querier) *PostGISEngine {
	return &PostGISEngine{q: db}
}

func toWKT(g geom.T) (string, error) {
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", domain.NewValidationError("geometry", "encode wkt: %v", err)
	}
	return s, nil
}

func (e *PostGISEngine) upstream(op string, err error) error {
	return domain.Upstream("postgis", op, err)
}

// Length returns the geodesic length of g.
func (e *PostGISEngine) Length(ctx context.Context, g geom.T) (float64, error) {
	text, err := toWKT(g)
	if err != nil {
		return 0, err
	}
	var length float64
	err = e.q.QueryRowContext(ctx,
		`SELECT COALESCE(ST_Length(ST_GeomFromText($1, 4326)::geography), 0)`,
		text,
	).Scan(&length)
	if err != nil {
		return 0, e.upstream("length", err)
	}
	return length, nil
}

// Intersection returns the linear components of a ∩ b.
func (e *PostGISEngine) Intersection(ctx context.Context, a, b geom.T) (geom.T, error) {
	ta, err := toWKT(a)
	if err != nil {
		return nil, err
	}
	tb, err := toWKT(b)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = e.q.QueryRowContext(ctx, `
		SELECT ST_AsBinary(ST_Multi(ST_CollectionExtract(
			ST_Intersection(ST_GeomFromText($1, 4326), ST_GeomFromText($2, 4326)), 2)))`,
		ta, tb,
	).Scan(&raw)
	if err != nil {
		return nil, e.upstream("intersection", err)
	}
	out, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, e.upstream("intersection", fmt.Errorf("decode wkb: %w", err))
	}
	return out, nil
}

// Distance returns the geodesic distance between p and g.
func (e *PostGISEngine) Distance(ctx context.Context, p *geom.Point, g geom.T) (float64, error) {
	tp, err := toWKT(p)
	if err != nil {
		return 0, err
	}
	tg, err := toWKT(g)
	if err != nil {
		return 0, err
	}
	var d float64
	err = e.q.QueryRowContext(ctx,
		`SELECT ST_Distance(ST_GeomFromText($1, 4326)::geography, ST_GeomFromText($2, 4326)::geography)`,
		tp, tg,
	).Scan(&d)
	if err != nil {
		return 0, e.upstream("distance", err)
	}
	return d, nil
}

// ClosestPoint returns the point on g nearest to p.
func (e *PostGISEngine) ClosestPoint(ctx context.Context, g geom.T, p *geom.Point) (*geom.Point, error) {
	tg, err := toWKT(g)
	if err != nil {
		return nil, err
	}
	tp, err := toWKT(p)
	if err != nil {
		return nil, err
	}
	var x, y float64
	err = e.q.QueryRowContext(ctx, `
		SELECT ST_X(c), ST_Y(c)
		FROM (SELECT ST_ClosestPoint(ST_GeomFromText($1, 4326), ST_GeomFromText($2, 4326)) AS c) s`,
		tg, tp,
	).Scan(&x, &y)
	if err != nil {
		return nil, e.upstream("closest_point", err)
	}
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{x, y}), nil
}

// Intersects reports whether a and b share a point.
func (e *PostGISEngine) Intersects(ctx context.Context, a, b geom.T) (bool, error) {
	ta, err := toWKT(a)
	if err != nil {
		return false, err
	}
	tb, err := toWKT(b)
	if err != nil {
		return false, err
	}
	var ok bool
	err = e.q.QueryRowContext(ctx,
		`SELECT ST_Intersects(ST_GeomFromText($1, 4326), ST_GeomFromText($2, 4326))`,
		ta, tb,
	).Scan(&ok)
	if err != nil {
		return false, e.upstream("intersects", err)
	}
	return ok, nil
}

var _ Engine = (*PostGISEngine)(nil)
