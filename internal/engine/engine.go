// Package engine fuses the three signal sources — shared aggregate,
// private per-agent delta, and gossiped peer deltas — into one stable
// vibe estimate per cell, and folds visit observations into the private
// delta with a decaying learning rate.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// Learning-rate bounds. The rate starts at the ceiling for a fresh cell
// and decays toward the floor as visits accumulate, so a single visit can
// neither whipsaw the delta nor be frozen out entirely.
const (
	alphaFloor   = 0.03
	alphaCeiling = 0.20
)

// parentPrecision is the coarser tier blended in for fine-grained cells.
const parentPrecision = 5

// GlobalSource serves the shared aggregate for a cell. Implementations
// never fail; degraded tiers return cached or default state.
type GlobalSource interface {
	GlobalState(ctx context.Context, key cell.Key) vibe.GlobalState
}

// DeltaStore persists private per-agent adjustment vectors.
type DeltaStore interface {
	GetDelta(agentID string, key cell.Key) (vibe.PersonalDelta, error)
	SaveDelta(agentID string, d vibe.PersonalDelta) error
}

// MeshSource serves still-valid gossiped deltas for a cell's neighborhood.
type MeshSource interface {
	GetNeighborUpdates(key cell.Key) []vibe.Vector
}

// VisitEmitter uploads a coarsened record of an observation. Best-effort.
type VisitEmitter interface {
	EmitVisit(ctx context.Context, agentHandle string, key cell.Key, obs vibe.Observation)
}

// Engine orchestrates inference and learning over the state sources.
type Engine struct {
	Global  GlobalSource
	Deltas  DeltaStore
	Mesh    MeshSource
	Emitter VisitEmitter // optional

	writeLocks *keyMutex
	now        func() time.Time
}

// New creates an Engine over the given sources.
func New(global GlobalSource, deltas DeltaStore, mesh MeshSource) *Engine {
	return &Engine{
		Global:     global,
		Deltas:     deltas,
		Mesh:       mesh,
		writeLocks: newKeyMutex(),
		now:        time.Now,
	}
}

// SetEmitter configures the update-event emitter.
func (e *Engine) SetEmitter(em VisitEmitter) {
	e.Emitter = em
}

// InferVector returns the blended vibe vector for an agent at a cell.
//
// Self carries weight 0.50, same-precision neighbors 0.25, the
// precision-5 parent 0.10 (cells at precision >= 6 only), and gossiped
// mesh deltas 0.15. The agent's private delta is added on top and the
// result clamped to [0,1]. No side effects; repeated calls with unchanged
// inputs yield the same output modulo remote staleness.
func (e *Engine) InferVector(ctx context.Context, agentID string, key cell.Key) vibe.Vector {
	self := e.Global.GlobalState(ctx, key).Vector

	neighborKeys := key.Neighbors()
	neighbors := make([]vibe.Vector, 0, len(neighborKeys))
	for _, nk := range neighborKeys {
		neighbors = append(neighbors, e.Global.GlobalState(ctx, nk).Vector)
	}

	var parent *vibe.Vector
	if key.Precision > parentPrecision {
		if parentKey, err := key.ParentAt(parentPrecision); err == nil {
			pv := e.Global.GlobalState(ctx, parentKey).Vector
			parent = &pv
		}
	}

	meshDeltas := e.Mesh.GetNeighborUpdates(key)

	blended := blend(self, neighbors, parent, meshDeltas)

	delta, err := e.Deltas.GetDelta(agentID, key)
	if err != nil {
		// Read path degrades gracefully: infer with no personal overlay.
		log.Printf("engine: personal delta read for %s: %v", key.StableKey(), err)
	}

	for i := range blended {
		blended[i] += delta.Delta[i]
	}
	return blended.Clamp01()
}

// LearnFromObservation folds one visit into the agent's private delta for
// the cell using an exponential moving average with an adaptive rate,
// then emits a coarsened update event. homebase may be nil.
//
// The read-modify-write is serialized per (agent, cell); concurrent
// observations for the same pair cannot lose updates. A persistence
// failure propagates — dropping the write silently would desynchronize
// the visit count from reality.
func (e *Engine) LearnFromObservation(ctx context.Context, agentID string, key cell.Key, obs vibe.Observation, homebase *vibe.Homebase) (vibe.PersonalDelta, error) {
	lockKey := agentID + "/" + key.StableKey()
	mu := e.writeLocks.lock(lockKey)
	defer mu.Unlock()

	existing, err := e.Deltas.GetDelta(agentID, key)
	if err != nil {
		return vibe.PersonalDelta{}, fmt.Errorf("load delta: %w", err)
	}

	signal := extractSignal(obs, homebase)
	alpha := learningRate(existing.VisitCount)

	next := vibe.PersonalDelta{
		Key:        key,
		VisitCount: existing.VisitCount + 1,
		UpdatedAt:  e.now(),
	}
	for i := range next.Delta {
		next.Delta[i] = existing.Delta[i]*(1-alpha) + signal[i]*alpha
	}

	if err := e.Deltas.SaveDelta(agentID, next); err != nil {
		return vibe.PersonalDelta{}, fmt.Errorf("save delta: %w", err)
	}

	if e.Emitter != nil {
		e.Emitter.EmitVisit(ctx, agentID, key, obs)
	}
	return next, nil
}

// learningRate computes the adaptive EMA rate for a cell with the given
// visit history: 1/max(4, visits+1), clamped to [alphaFloor, alphaCeiling].
// Non-increasing in visitCount.
func learningRate(visitCount int) float64 {
	denom := visitCount + 1
	if denom < 4 {
		denom = 4
	}
	return clampF(1.0/float64(denom), alphaFloor, alphaCeiling)
}
