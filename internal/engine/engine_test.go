package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

type fakeGlobal struct {
	states map[string]vibe.GlobalState
}

func (f *fakeGlobal) GlobalState(ctx context.Context, key cell.Key) vibe.GlobalState {
	if st, ok := f.states[key.StableKey()]; ok {
		return st
	}
	return vibe.DefaultGlobalState(key)
}

type fakeDeltas struct {
	deltas  map[string]vibe.PersonalDelta
	getErr  error
	saveErr error
}

func newFakeDeltas() *fakeDeltas {
	return &fakeDeltas{deltas: make(map[string]vibe.PersonalDelta)}
}

func (f *fakeDeltas) GetDelta(agentID string, key cell.Key) (vibe.PersonalDelta, error) {
	if f.getErr != nil {
		return vibe.PersonalDelta{Key: key}, f.getErr
	}
	if d, ok := f.deltas[agentID+"/"+key.StableKey()]; ok {
		return d, nil
	}
	return vibe.PersonalDelta{Key: key}, nil
}

func (f *fakeDeltas) SaveDelta(agentID string, d vibe.PersonalDelta) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.deltas[agentID+"/"+d.Key.StableKey()] = d
	return nil
}

type fakeMesh struct {
	updates []vibe.Vector
}

func (f *fakeMesh) GetNeighborUpdates(key cell.Key) []vibe.Vector {
	return f.updates
}

type recordEmitter struct {
	handles []string
	events  []vibe.Observation
}

func (r *recordEmitter) EmitVisit(ctx context.Context, agentHandle string, key cell.Key, obs vibe.Observation) {
	r.handles = append(r.handles, agentHandle)
	r.events = append(r.events, obs)
}

func testEngine() (*Engine, *fakeGlobal, *fakeDeltas, *fakeMesh) {
	g := &fakeGlobal{states: make(map[string]vibe.GlobalState)}
	d := newFakeDeltas()
	m := &fakeMesh{}
	return New(g, d, m), g, d, m
}

var testKey = cell.Key{Prefix: "u4pruyd", Precision: 7}

// A cell with no prior data anywhere and an agent with no visits yields
// the neutral vector exactly.
func TestInferColdStart(t *testing.T) {
	eng, _, _, _ := testEngine()

	got := eng.InferVector(context.Background(), "agent-1", testKey)
	for i, v := range got {
		if v != 0.5 {
			t.Errorf("dim %d = %v, want exactly 0.5", i, v)
		}
	}
}

func TestInferAppliesPersonalDelta(t *testing.T) {
	eng, _, deltas, _ := testEngine()

	var d vibe.Vector
	d[vibe.EnergyPreference] = 0.1
	deltas.deltas["agent-1/"+testKey.StableKey()] = vibe.PersonalDelta{Key: testKey, Delta: d, VisitCount: 4}

	got := eng.InferVector(context.Background(), "agent-1", testKey)
	if math.Abs(got[vibe.EnergyPreference]-0.6) > 1e-9 {
		t.Errorf("energy = %v, want 0.6", got[vibe.EnergyPreference])
	}
	if got[vibe.CrowdTolerance] != 0.5 {
		t.Errorf("untouched dim = %v, want 0.5", got[vibe.CrowdTolerance])
	}
}

func TestInferOutputClamped(t *testing.T) {
	eng, g, deltas, m := testEngine()

	// Hostile inputs: saturated global state, adversarial mesh deltas,
	// and a personal delta at the practical bound.
	var high, low vibe.Vector
	for i := range high {
		high[i] = 1.0
		low[i] = -1.0
	}
	g.states[testKey.StableKey()] = vibe.GlobalState{Key: testKey, Vector: high, SampleCount: 5}
	m.updates = []vibe.Vector{low, low, low}

	var d vibe.Vector
	for i := range d {
		d[i] = 0.9
	}
	deltas.deltas["agent-1/"+testKey.StableKey()] = vibe.PersonalDelta{Key: testKey, Delta: d, VisitCount: 1}

	got := eng.InferVector(context.Background(), "agent-1", testKey)
	for i, v := range got {
		if v < 0 || v > 1 {
			t.Errorf("dim %d = %v, outside [0,1]", i, v)
		}
	}

	deltas.deltas["agent-1/"+testKey.StableKey()] = vibe.PersonalDelta{Key: testKey, Delta: low, VisitCount: 1}
	got = eng.InferVector(context.Background(), "agent-1", testKey)
	for i, v := range got {
		if v < 0 || v > 1 {
			t.Errorf("dim %d = %v, outside [0,1]", i, v)
		}
	}
}

func TestInferParentTier(t *testing.T) {
	eng, g, _, _ := testEngine()

	// Seed a distinctive parent at precision 5. Cells at precision >= 6
	// blend it in; coarser cells must not.
	parentKey, err := testKey.ParentAt(5)
	if err != nil {
		t.Fatalf("ParentAt: %v", err)
	}
	var pv vibe.Vector
	for i := range pv {
		pv[i] = 1.0
	}
	g.states[parentKey.StableKey()] = vibe.GlobalState{Key: parentKey, Vector: pv, SampleCount: 100}

	fine := eng.InferVector(context.Background(), "agent-1", testKey)
	if fine[0] <= 0.5 {
		t.Errorf("fine[0] = %v, want > 0.5 with hot parent", fine[0])
	}

	// A precision-5 cell never reaches for a parent tier of its own.
	coarse := eng.InferVector(context.Background(), "agent-1", cell.Key{Prefix: "u4prv", Precision: 5})
	if coarse[0] != 0.5 {
		t.Errorf("coarse[0] = %v, want 0.5 (no parent tier at precision 5)", coarse[0])
	}
}

func TestInferDeltaReadFailureDegrades(t *testing.T) {
	eng, _, deltas, _ := testEngine()
	deltas.getErr = errors.New("disk error")

	got := eng.InferVector(context.Background(), "agent-1", testKey)
	for i, v := range got {
		if v != 0.5 {
			t.Errorf("dim %d = %v, want 0.5 without overlay", i, v)
		}
	}
}

func TestLearningRateBounds(t *testing.T) {
	prev := math.Inf(1)
	for visits := 0; visits <= 200; visits++ {
		alpha := learningRate(visits)
		if alpha < alphaFloor || alpha > alphaCeiling {
			t.Errorf("alpha(%d) = %f, outside [%f, %f]", visits, alpha, alphaFloor, alphaCeiling)
		}
		if alpha > prev {
			t.Errorf("alpha(%d) = %f increased from %f", visits, alpha, prev)
		}
		prev = alpha
	}

	if learningRate(0) != alphaCeiling {
		t.Errorf("alpha(0) = %f, want ceiling %f", learningRate(0), alphaCeiling)
	}
	if learningRate(1000) != alphaFloor {
		t.Errorf("alpha(1000) = %f, want floor %f", learningRate(1000), alphaFloor)
	}
}

// First-ever observation: late-night long dwell, no extras.
func TestLearnFirstObservation(t *testing.T) {
	eng, _, _, _ := testEngine()

	obs := vibe.Observation{
		OccurredAt:    time.Date(2026, 8, 20, 22, 0, 0, 0, time.Local),
		IsRepeatVisit: false,
		DwellMinutes:  45,
	}

	d, err := eng.LearnFromObservation(context.Background(), "agent-1", testKey, obs, nil)
	if err != nil {
		t.Fatalf("LearnFromObservation: %v", err)
	}
	if d.VisitCount != 1 {
		t.Errorf("visit_count = %d, want 1", d.VisitCount)
	}

	touched := []int{
		vibe.NoveltySeeking, vibe.ExplorationEagerness, vibe.AuthenticityPreference,
		vibe.EnergyPreference, vibe.CrowdTolerance, vibe.TemporalFlexibility,
	}
	for _, dim := range touched {
		if d.Delta[dim] == 0 {
			t.Errorf("%s = 0, want non-zero", vibe.DimensionNames[dim])
		}
	}
	for i, v := range d.Delta {
		if v < -0.20 || v > 0.20 {
			t.Errorf("dim %d = %f, outside [-0.20, 0.20]", i, v)
		}
	}
}

// Repeating the same observation moves the delta further in the same
// direction but by a strictly smaller increment.
func TestLearnIncrementDecays(t *testing.T) {
	eng, _, _, _ := testEngine()

	obs := vibe.Observation{
		OccurredAt:    time.Date(2026, 8, 20, 22, 0, 0, 0, time.Local),
		IsRepeatVisit: false,
		DwellMinutes:  45,
	}

	first, err := eng.LearnFromObservation(context.Background(), "agent-1", testKey, obs, nil)
	if err != nil {
		t.Fatalf("first learn: %v", err)
	}
	second, err := eng.LearnFromObservation(context.Background(), "agent-1", testKey, obs, nil)
	if err != nil {
		t.Fatalf("second learn: %v", err)
	}

	if second.VisitCount != 2 {
		t.Errorf("visit_count = %d, want 2", second.VisitCount)
	}

	dim := vibe.AuthenticityPreference
	firstStep := first.Delta[dim]
	secondStep := second.Delta[dim] - first.Delta[dim]

	if firstStep <= 0 || secondStep <= 0 {
		t.Fatalf("steps = %f, %f — want both positive", firstStep, secondStep)
	}
	if secondStep >= firstStep {
		t.Errorf("second step %f should be strictly smaller than first %f", secondStep, firstStep)
	}
}

func TestLearnSaveFailurePropagates(t *testing.T) {
	eng, _, deltas, _ := testEngine()
	deltas.saveErr = errors.New("disk full")

	_, err := eng.LearnFromObservation(context.Background(), "agent-1", testKey, vibe.Observation{OccurredAt: time.Now()}, nil)
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
}

func TestLearnEmitsUpdateEvent(t *testing.T) {
	eng, _, _, _ := testEngine()
	rec := &recordEmitter{}
	eng.SetEmitter(rec)

	obs := vibe.Observation{OccurredAt: time.Now(), DwellMinutes: 20}
	if _, err := eng.LearnFromObservation(context.Background(), "agent-1", testKey, obs, nil); err != nil {
		t.Fatalf("LearnFromObservation: %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(rec.events))
	}
	if rec.handles[0] != "agent-1" {
		t.Errorf("handle = %q, want agent-1", rec.handles[0])
	}
}

func TestLearnConcurrentSameKey(t *testing.T) {
	eng, _, _, _ := testEngine()

	obs := vibe.Observation{OccurredAt: time.Now(), DwellMinutes: 35}
	const workers = 16

	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := eng.LearnFromObservation(context.Background(), "agent-1", testKey, obs, nil)
			done <- err
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent learn: %v", err)
		}
	}

	final, err := eng.Deltas.GetDelta("agent-1", testKey)
	if err != nil {
		t.Fatalf("GetDelta: %v", err)
	}
	if final.VisitCount != workers {
		t.Errorf("visit_count = %d, want %d — lost updates", final.VisitCount, workers)
	}
}
