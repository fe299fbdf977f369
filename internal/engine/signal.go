package engine

import (
	"math"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// signalClamp bounds any single observation's influence per dimension,
// keeping one visit small relative to accumulated history.
const signalClamp = 0.20

// Contribution magnitudes. Tuned so a typical visit moves two or three
// dimensions by well under the clamp.
const (
	dwellStrong     = 0.12 // >= 30 min
	dwellModerate   = 0.06 // >= 15 min
	peerCommunity   = 0.10
	peerDiscovery   = 0.08
	peerTrust       = 0.08
	peerCuration    = 0.04
	richExchangeMul = 1.5
	homebaseScale   = 0.10
	homebaseRefKm   = 20.0
	lateEnergy      = 0.08
	lateCrowd       = 0.06
	lateTemporal    = 0.05
	earlyTemporal   = 0.03
	ratingMidpoint  = 3.0
)

// extractSignal turns one observation into a 12-slot feature signal.
// Deterministic; dimensions the observation says nothing about stay 0.
func extractSignal(obs vibe.Observation, homebase *vibe.Homebase) vibe.Vector {
	var sig vibe.Vector

	// Quality-derived strength factor scales the soft contributions.
	strength := clampF(0.05+0.10*(obs.Quality/1.5), 0.05, 0.15)

	// Novelty: first-time visits push novelty-seeking up and earn an
	// exploration bonus; repeats push it down.
	if obs.IsRepeatVisit {
		sig[vibe.NoveltySeeking] -= strength
	} else {
		sig[vibe.NoveltySeeking] += strength
		sig[vibe.ExplorationEagerness] += strength
	}

	// Dwell time: lingering signals authenticity preference.
	switch {
	case obs.DwellMinutes >= 30:
		sig[vibe.AuthenticityPreference] += dwellStrong
	case obs.DwellMinutes >= 15:
		sig[vibe.AuthenticityPreference] += dwellModerate
	}

	// Proximity peer exchange: social dimensions, amplified when the
	// handshake carried a full profile rather than a bare ping.
	if obs.PeerExchange {
		mul := 1.0
		if obs.RichExchange {
			mul = richExchangeMul
		}
		sig[vibe.CommunityOrientation] += peerCommunity * mul
		sig[vibe.SocialDiscoveryStyle] += peerDiscovery * mul
		sig[vibe.TrustNetworkReliance] += peerTrust * mul
		sig[vibe.CurationTendency] += peerCuration * mul
	}

	// Distance from homebase, normalized against a 20 km reference.
	if homebase != nil {
		dist := cell.DistanceKm(obs.Latitude, obs.Longitude, homebase.Latitude, homebase.Longitude)
		sig[vibe.LocationAdventurousness] += math.Min(dist/homebaseRefKm, 1.0) * homebaseScale
	}

	// Local time of day.
	if !obs.OccurredAt.IsZero() {
		hour := obs.OccurredAt.Hour()
		switch {
		case hour >= 21 || hour < 2:
			sig[vibe.EnergyPreference] += lateEnergy
			sig[vibe.CrowdTolerance] += lateCrowd
			sig[vibe.TemporalFlexibility] += lateTemporal
		case hour >= 6 && hour < 9:
			sig[vibe.TemporalFlexibility] += earlyTemporal
		}
	}

	// Explicit rating nudges value orientation around the 3/5 midpoint.
	if obs.Rating > 0 {
		sig[vibe.ValueOrientation] += (obs.Rating - ratingMidpoint) / 2.0 * strength
	}

	return sig.ClampSym(signalClamp)
}

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
