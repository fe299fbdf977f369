package vibe

import (
	"encoding/binary"
	"math"
)

// Dims is the number of dimensions in a vibe vector.
const Dims = 12

// Dimension indices. The order is part of the storage and wire format;
// never reorder.
const (
	NoveltySeeking = iota
	ExplorationEagerness
	AuthenticityPreference
	CommunityOrientation
	SocialDiscoveryStyle
	TrustNetworkReliance
	CurationTendency
	LocationAdventurousness
	EnergyPreference
	CrowdTolerance
	TemporalFlexibility
	ValueOrientation
)

// DimensionNames maps indices to their snake_case names, in storage order.
var DimensionNames = [Dims]string{
	"novelty_seeking",
	"exploration_eagerness",
	"authenticity_preference",
	"community_orientation",
	"social_discovery_style",
	"trust_network_reliance",
	"curation_tendency",
	"location_adventurousness",
	"energy_preference",
	"crowd_tolerance",
	"temporal_flexibility",
	"value_orientation",
}

// Vector is a 12-dimensional descriptor of a cell's ambient character.
// Blended output vectors live in [0,1] per dimension; delta vectors in [-1,1].
type Vector [Dims]float64

// Neutral returns the all-0.5 vector used when nothing is known about a cell.
func Neutral() Vector {
	var v Vector
	for i := range v {
		v[i] = 0.5
	}
	return v
}

// Clamp01 clamps every dimension to [0,1].
func (v Vector) Clamp01() Vector {
	for i := range v {
		v[i] = clamp(v[i], 0, 1)
	}
	return v
}

// ClampSym clamps every dimension to [-bound, bound].
func (v Vector) ClampSym(bound float64) Vector {
	for i := range v {
		v[i] = clamp(v[i], -bound, bound)
	}
	return v
}

// IsFinite reports whether every dimension is a finite number.
func (v Vector) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Encode converts the vector to a binary BLOB (8 bytes per float64,
// little-endian). Round-trips bit-for-bit through Decode.
func (v Vector) Encode() []byte {
	buf := make([]byte, Dims*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

// Decode converts a binary BLOB back to a Vector. Returns false if the
// blob is not exactly Dims float64s wide; callers substitute a documented
// default in that case rather than failing the read.
func Decode(buf []byte) (Vector, bool) {
	var v Vector
	if len(buf) != Dims*8 {
		return v, false
	}
	for i := 0; i < Dims; i++ {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v, true
}

// FromSlice converts a []float64 to a Vector. Returns false if the slice
// is not exactly Dims wide.
func FromSlice(s []float64) (Vector, bool) {
	var v Vector
	if len(s) != Dims {
		return v, false
	}
	copy(v[:], s)
	return v, true
}
