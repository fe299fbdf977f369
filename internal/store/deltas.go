package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// GetDelta returns the personal delta stored for an agent at a cell.
// When nothing is stored it returns a zero-delta default with visit_count 0
// and a nil error; only real storage failures error.
func (db *DB) GetDelta(agentID string, key cell.Key) (vibe.PersonalDelta, error) {
	var (
		deltaBlob  []byte
		visitCount int
		updatedAt  int64
	)

	err := db.QueryRow(`
		SELECT delta, visit_count, updated_at
		FROM personal_deltas WHERE agent_id = ? AND stable_key = ?
	`, agentID, key.StableKey()).Scan(&deltaBlob, &visitCount, &updatedAt)
	if err == sql.ErrNoRows {
		return vibe.PersonalDelta{Key: key}, nil
	}
	if err != nil {
		return vibe.PersonalDelta{Key: key}, fmt.Errorf("get delta: %w", err)
	}

	d := vibe.PersonalDelta{
		Key:        key,
		VisitCount: visitCount,
		UpdatedAt:  time.UnixMilli(updatedAt),
	}
	delta, ok := vibe.Decode(deltaBlob)
	if !ok {
		// Malformed stored vector: repair to the zero delta but keep the
		// visit count, which is still meaningful for the learning rate.
		return d, nil
	}
	d.Delta = delta
	return d, nil
}

// SaveDelta persists a personal delta under the composite
// (agent_id, stable_key) key. Failures propagate: silently dropping a
// learning update would desynchronize visit_count from reality.
func (db *DB) SaveDelta(agentID string, d vibe.PersonalDelta) error {
	_, err := db.Exec(`
		INSERT INTO personal_deltas (agent_id, stable_key, prefix, precision, delta, visit_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, stable_key) DO UPDATE SET
			delta = excluded.delta,
			visit_count = excluded.visit_count,
			updated_at = excluded.updated_at
	`, agentID, d.Key.StableKey(), d.Key.Prefix, d.Key.Precision,
		d.Delta.Encode(), d.VisitCount, d.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save delta: %w", err)
	}
	return nil
}

// CountDeltas returns the number of cells an agent has learned into.
func (db *DB) CountDeltas(agentID string) (int, error) {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM personal_deltas WHERE agent_id = ?", agentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count deltas: %w", err)
	}
	return n, nil
}
