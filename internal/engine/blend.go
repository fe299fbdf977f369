package engine

import "github.com/vibemesh/vibemesh/internal/vibe"

// Blend weights, summing to 1.0 when every source is present. Absent
// neighbor and parent weight folds back onto self; absent mesh weight is
// dropped from the total instead — gossip is a qualitatively fresher
// signal and its absence must not inflate the self weight. This asymmetry
// is load-bearing: do not fold mesh back, and do not treat the other
// absences as proportional drops.
const (
	weightSelf      = 0.50
	weightNeighbors = 0.25
	weightParent    = 0.10
	weightMesh      = 0.15
)

// blend combines the cell's own aggregate with neighbor, parent, and mesh
// signals into one vector. Neighbor and mesh totals split evenly across
// however many contributors exist; the sum is scaled by the total weight
// actually present (1.0 with mesh, 0.85 without).
func blend(self vibe.Vector, neighbors []vibe.Vector, parent *vibe.Vector, mesh []vibe.Vector) vibe.Vector {
	selfW := weightSelf
	total := weightSelf + weightNeighbors + weightParent
	if len(neighbors) == 0 {
		selfW += weightNeighbors
	}
	if parent == nil {
		selfW += weightParent
	}
	if len(mesh) > 0 {
		total += weightMesh
	}

	var out vibe.Vector
	for i := range out {
		v := self[i] * selfW

		if len(neighbors) > 0 {
			per := weightNeighbors / float64(len(neighbors))
			for _, n := range neighbors {
				v += n[i] * per
			}
		}

		if parent != nil {
			v += parent[i] * weightParent
		}

		if len(mesh) > 0 {
			per := weightMesh / float64(len(mesh))
			for _, m := range mesh {
				v += m[i] * per
			}
		}

		out[i] = v / total
	}
	return out
}
