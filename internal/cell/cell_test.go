package cell

import (
	"errors"
	"testing"
)

func TestFromLatLon(t *testing.T) {
	// Classic geohash reference point.
	k := FromLatLon(57.64911, 10.40744, 11)
	if k.Prefix != "u4pruydqqvj" {
		t.Errorf("prefix = %q, want u4pruydqqvj", k.Prefix)
	}
	if k.Precision != 11 {
		t.Errorf("precision = %d, want 11", k.Precision)
	}

	k6 := FromLatLon(57.64911, 10.40744, 6)
	if k6.Prefix != "u4pruy" {
		t.Errorf("prefix = %q, want u4pruy", k6.Prefix)
	}
}

func TestStableKey(t *testing.T) {
	k := Key{Prefix: "u4pruyd", Precision: 7}
	if got := k.StableKey(); got != "gh7:u4pruyd" {
		t.Errorf("StableKey = %q, want gh7:u4pruyd", got)
	}

	// Deterministic: same identity, same key.
	again := Key{Prefix: "u4pruyd", Precision: 7}
	if k.StableKey() != again.StableKey() {
		t.Error("StableKey not deterministic")
	}

	// Region tag is descriptive only — excluded from identity.
	tagged := Key{Prefix: "u4pruyd", Precision: 7, RegionTag: "DK"}
	if tagged.StableKey() != k.StableKey() {
		t.Errorf("region tag leaked into stable key: %q", tagged.StableKey())
	}
}

func TestParentAt(t *testing.T) {
	k := Key{Prefix: "u4pruyd", Precision: 7, RegionTag: "DK"}

	p, err := k.ParentAt(5)
	if err != nil {
		t.Fatalf("ParentAt(5): %v", err)
	}
	if p.Prefix != "u4pru" || p.Precision != 5 {
		t.Errorf("parent = %q/%d, want u4pru/5", p.Prefix, p.Precision)
	}
	if p.RegionTag != "DK" {
		t.Errorf("parent region tag = %q, want DK", p.RegionTag)
	}

	// Same precision is allowed.
	same, err := k.ParentAt(7)
	if err != nil {
		t.Fatalf("ParentAt(7): %v", err)
	}
	if !same.Equal(k) {
		t.Errorf("ParentAt(7) = %+v, want original", same)
	}

	// Finer than the key is an error.
	if _, err := k.ParentAt(8); !errors.Is(err, ErrInvalidPrecision) {
		t.Errorf("ParentAt(8) err = %v, want ErrInvalidPrecision", err)
	}
	if _, err := k.ParentAt(0); !errors.Is(err, ErrInvalidPrecision) {
		t.Errorf("ParentAt(0) err = %v, want ErrInvalidPrecision", err)
	}
}

func TestNeighbors(t *testing.T) {
	k := FromLatLon(57.64911, 10.40744, 7)
	neighbors := k.Neighbors()

	if len(neighbors) != 8 {
		t.Fatalf("len(neighbors) = %d, want 8", len(neighbors))
	}

	seen := map[string]bool{k.StableKey(): true}
	for _, n := range neighbors {
		if n.Precision != k.Precision {
			t.Errorf("neighbor %q precision = %d, want %d", n.Prefix, n.Precision, k.Precision)
		}
		if seen[n.StableKey()] {
			t.Errorf("duplicate or self neighbor %q", n.StableKey())
		}
		seen[n.StableKey()] = true
	}
}

func TestParseStableKey(t *testing.T) {
	k, err := ParseStableKey("gh7:u4pruyd")
	if err != nil {
		t.Fatalf("ParseStableKey: %v", err)
	}
	if k.Prefix != "u4pruyd" || k.Precision != 7 {
		t.Errorf("parsed = %+v, want u4pruyd/7", k)
	}

	bad := []string{"", "u4pruyd", "gh:u4", "ghx:u4", "gh7:u4", "gh0:"}
	for _, s := range bad {
		if _, err := ParseStableKey(s); err == nil {
			t.Errorf("ParseStableKey(%q) succeeded, want error", s)
		}
	}
}

func TestDistanceKm(t *testing.T) {
	// Paris to London is roughly 344 km.
	d := DistanceKm(48.8566, 2.3522, 51.5074, -0.1278)
	if d < 330 || d > 355 {
		t.Errorf("DistanceKm = %f, want ~344", d)
	}

	if d := DistanceKm(48.8566, 2.3522, 48.8566, 2.3522); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}
}
