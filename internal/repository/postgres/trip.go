package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// jsonParam encodes v for a JSONB column. lib/pq sends []byte as bytea, so
// the document goes over the wire as a string.
func jsonParam(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// cursorParam maps the empty keyset cursor to NULL.
func cursorParam(afterID string) any {
	if afterID == "" {
		return nil
	}
	return afterID
}

func coordParam(c *domain.Coordinate) (any, error) {
	if c == nil {
		return nil, nil
	}
	return jsonParam(c)
}

func decodeCoord(b []byte) (*domain.Coordinate, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var c domain.Coordinate
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Bool
	return &b
}

func decodeMask(b []byte, version int64) (domain.TileOverlap, error) {
	var m domain.Bitmask
	if err := m.UnmarshalBinary(b); err != nil {
		return domain.TileOverlap{}, err
	}
	return domain.TileOverlap{GridVersion: version, Mask: m}, nil
}
