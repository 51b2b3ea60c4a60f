package domain

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Bitmask is a fixed-width bit vector over the tiles of one grid version.
// Bit i corresponds to tile id i.
type Bitmask struct {
	width uint
	bits  *bitset.BitSet
}

// NewBitmask returns an all-zero mask of the given width.
func NewBitmask(width uint) Bitmask {
	return Bitmask{width: width, bits: bitset.New(width)}
}

// BitmaskFromIndices returns a mask with exactly the given bits set.
func BitmaskFromIndices(width uint, indices ...uint) (Bitmask, error) {
	m := NewBitmask(width)
	for _, i := range indices {
		if err := m.Set(i); err != nil {
			return Bitmask{}, err
		}
	}
	return m, nil
}

// Width is the number of bits, numTilesX * numTilesY of the grid it was computed on.
func (m Bitmask) Width() uint { return m.width }

// Set marks tile i.
func (m Bitmask) Set(i uint) error {
	if i >= m.width {
		return fmt.Errorf("bit %d out of range for width %d", i, m.width)
	}
	m.bits.Set(i)
	return nil
}

// Test reports whether tile i is marked.
func (m Bitmask) Test(i uint) bool {
	if m.bits == nil || i >= m.width {
		return false
	}
	return m.bits.Test(i)
}

// IsZero reports whether no bit is set.
func (m Bitmask) IsZero() bool {
	return m.bits == nil || m.bits.None()
}

// Count returns the number of set bits.
func (m Bitmask) Count() uint {
	if m.bits == nil {
		return 0
	}
	return m.bits.Count()
}

// Intersects reports whether m AND o is nonzero. Masks of different widths never intersect.
func (m Bitmask) Intersects(o Bitmask) bool {
	if m.width != o.width || m.bits == nil || o.bits == nil {
		return false
	}
	return m.bits.IntersectionCardinality(o.bits) > 0
}

// Union returns m OR o as a new mask.
func (m Bitmask) Union(o Bitmask) (Bitmask, error) {
	if m.width != o.width {
		return Bitmask{}, fmt.Errorf("cannot combine masks of width %d and %d", m.width, o.width)
	}
	out := NewBitmask(m.width)
	if m.bits != nil {
		out.bits.InPlaceUnion(m.bits)
	}
	if o.bits != nil {
		out.bits.InPlaceUnion(o.bits)
	}
	return out, nil
}

// Indices lists the set bits in ascending order.
func (m Bitmask) Indices() []uint {
	if m.bits == nil {
		return nil
	}
	out := make([]uint, 0, m.bits.Count())
	for i, ok := m.bits.NextSet(0); ok && i < m.width; i, ok = m.bits.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}

// Equal reports whether both masks have the same width and bits.
func (m Bitmask) Equal(o Bitmask) bool {
	if m.width != o.width {
		return false
	}
	if m.IsZero() || o.IsZero() {
		return m.IsZero() && o.IsZero()
	}
	return m.bits.Equal(o.bits)
}

// String renders the mask as '0'/'1' characters, bit 0 first.
func (m Bitmask) String() string {
	var sb strings.Builder
	sb.Grow(int(m.width))
	for i := uint(0); i < m.width; i++ {
		if m.Test(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseBitmask is the inverse of String.
func ParseBitmask(s string) (Bitmask, error) {
	m := NewBitmask(uint(len(s)))
	for i, r := range s {
		switch r {
		case '1':
			m.bits.Set(uint(i))
		case '0':
		default:
			return Bitmask{}, NewValidationError("bitmask", "unexpected character %q at %d", r, i)
		}
	}
	return m, nil
}

func (m Bitmask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Bitmask) UnmarshalText(b []byte) error {
	parsed, err := ParseBitmask(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalBinary is the storage encoding (bytea column).
func (m Bitmask) MarshalBinary() ([]byte, error) {
	if m.bits == nil {
		return bitset.New(m.width).MarshalBinary()
	}
	return m.bits.MarshalBinary()
}

func (m *Bitmask) UnmarshalBinary(b []byte) error {
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("decode bitmask: %w", err)
	}
	*m = Bitmask{width: bs.Len(), bits: bs}
	return nil
}
