package cell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
)

// ErrInvalidPrecision is returned when a parent is requested at a finer
// precision than the key itself.
var ErrInvalidPrecision = errors.New("cell: requested precision exceeds key precision")

// Key identifies a small geographic cell: a geohash prefix at a given
// precision. RegionTag is descriptive enrichment only — it is excluded
// from identity and must never feed a cache key.
type Key struct {
	Prefix    string
	Precision int
	RegionTag string
}

// FromLatLon builds a Key for the cell containing the given coordinates.
func FromLatLon(lat, lon float64, precision int) Key {
	return Key{
		Prefix:    geohash.EncodeWithPrecision(lat, lon, uint(precision)),
		Precision: precision,
	}
}

// StableKey returns the canonical string identity of the cell,
// "gh<precision>:<prefix>". Deterministic; RegionTag is excluded.
func (k Key) StableKey() string {
	return fmt.Sprintf("gh%d:%s", k.Precision, k.Prefix)
}

// ParentAt returns the key truncated to a coarser precision. The region
// tag is carried over since it describes the same general area.
func (k Key) ParentAt(precision int) (Key, error) {
	if precision > k.Precision {
		return Key{}, fmt.Errorf("%w: want %d, have %d", ErrInvalidPrecision, precision, k.Precision)
	}
	if precision < 1 {
		return Key{}, fmt.Errorf("%w: want %d", ErrInvalidPrecision, precision)
	}
	return Key{
		Prefix:    k.Prefix[:precision],
		Precision: precision,
		RegionTag: k.RegionTag,
	}, nil
}

// Neighbors returns the 8 adjacent cells at the same precision, in no
// particular order.
func (k Key) Neighbors() []Key {
	prefixes := geohash.Neighbors(k.Prefix)
	keys := make([]Key, 0, len(prefixes))
	for _, p := range prefixes {
		keys = append(keys, Key{Prefix: p, Precision: k.Precision})
	}
	return keys
}

// Equal reports identity equality: prefix, precision, and region tag.
func (k Key) Equal(other Key) bool {
	return k.Prefix == other.Prefix && k.Precision == other.Precision && k.RegionTag == other.RegionTag
}

// ParseStableKey parses the "gh<precision>:<prefix>" form back into a Key.
func ParseStableKey(s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, "gh")
	if !ok {
		return Key{}, fmt.Errorf("parse stable key %q: missing gh prefix", s)
	}
	precStr, prefix, ok := strings.Cut(rest, ":")
	if !ok {
		return Key{}, fmt.Errorf("parse stable key %q: missing separator", s)
	}
	precision, err := strconv.Atoi(precStr)
	if err != nil {
		return Key{}, fmt.Errorf("parse stable key %q: bad precision: %w", s, err)
	}
	if precision < 1 || len(prefix) != precision {
		return Key{}, fmt.Errorf("parse stable key %q: prefix length %d does not match precision %d", s, len(prefix), precision)
	}
	return Key{Prefix: prefix, Precision: precision}, nil
}
