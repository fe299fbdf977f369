package vibe

import (
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
)

// GlobalState is the shared aggregate for a cell, learned across all
// participants and held by the backing store. Read-only on this side.
type GlobalState struct {
	Key         cell.Key
	Vector      Vector // each dimension in [0,1]
	SampleCount int
	Confidence  Vector // each dimension in [0,1]; all zero when unknown
	UpdatedAt   time.Time
}

// DefaultGlobalState returns the neutral state used when neither the
// remote nor the on-device cache knows anything about a cell.
func DefaultGlobalState(key cell.Key) GlobalState {
	return GlobalState{
		Key:         key,
		Vector:      Neutral(),
		SampleCount: 0,
	}
}

// PersonalDelta is a private, device-local additive adjustment to the
// shared state. Owned by one agent handle; never uploaded raw.
type PersonalDelta struct {
	Key        cell.Key
	Delta      Vector // each dimension in [-1,1]
	VisitCount int
	UpdatedAt  time.Time
}

// MeshEntry is a short-lived delta vector gossiped from a nearby peer.
// Logically deleted once now > ExpiresAt.
type MeshEntry struct {
	Key        cell.Key
	Delta      Vector
	ReceivedAt time.Time
	ExpiresAt  time.Time
}

// Valid reports whether the entry is still live at the given instant.
func (e MeshEntry) Valid(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

// Observation is one visit signal at a cell, as reported by the host app.
type Observation struct {
	OccurredAt     time.Time
	IsRepeatVisit  bool
	DwellMinutes   int
	Quality        float64 // quality score, 0 when absent
	Rating         float64 // explicit 1..5 rating, 0 when absent
	PeerExchange   bool    // a nearby-peer handshake happened during the visit
	RichExchange   bool    // the handshake carried a full profile exchange
	Latitude       float64
	Longitude      float64
	ReportedRegion string
	InferredRegion string
	Source         string
}

// Homebase is an agent's known home location, used to scale the
// location-adventurousness signal.
type Homebase struct {
	Latitude  float64
	Longitude float64
}

// UpdateEvent is the flat, privacy-bounded record handed to the transport
// for upload to the shared aggregate. It must never contain a user
// identifier; the pseudonymous agent handle travels outside the body.
type UpdateEvent struct {
	ID               string    `json:"id"`
	StableKey        string    `json:"stable_key"`
	GeohashPrefix    string    `json:"geohash_prefix"`
	GeohashPrecision int       `json:"geohash_precision"`
	ReportedRegion   string    `json:"reported_region_code,omitempty"`
	InferredRegion   string    `json:"inferred_region_code,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
	Source           string    `json:"source"`
	DwellMinutes     int       `json:"dwell_minutes,omitempty"`
	QualityScore     float64   `json:"quality_score,omitempty"`
	IsRepeatVisit    bool      `json:"is_repeat_visit"`
}
