package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibemesh/vibemesh/internal/vibe"
)

// SaveMeshEntry stores or replaces the durable mirror of a gossiped delta.
// One row per cell: a fresher update from any peer supersedes the old one.
func (db *DB) SaveMeshEntry(stableKey string, e vibe.MeshEntry) error {
	_, err := db.Exec(`
		INSERT INTO mesh_mirror (stable_key, delta, received_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(stable_key) DO UPDATE SET
			delta = excluded.delta,
			received_at = excluded.received_at,
			expires_at = excluded.expires_at
	`, stableKey, e.Delta.Encode(), e.ReceivedAt.UnixMilli(), e.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save mesh entry: %w", err)
	}
	return nil
}

// GetMeshEntry returns the mirrored entry for a stable key, or nil if none
// exists or the stored vector is malformed.
func (db *DB) GetMeshEntry(stableKey string) (*vibe.MeshEntry, error) {
	var (
		deltaBlob  []byte
		receivedAt int64
		expiresAt  int64
	)

	err := db.QueryRow(`
		SELECT delta, received_at, expires_at
		FROM mesh_mirror WHERE stable_key = ?
	`, stableKey).Scan(&deltaBlob, &receivedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mesh entry: %w", err)
	}

	delta, ok := vibe.Decode(deltaBlob)
	if !ok {
		return nil, nil
	}
	return &vibe.MeshEntry{
		Delta:      delta,
		ReceivedAt: time.UnixMilli(receivedAt),
		ExpiresAt:  time.UnixMilli(expiresAt),
	}, nil
}

// DeleteMeshEntry removes a mirrored entry. Deleting a row that is already
// gone is a no-op.
func (db *DB) DeleteMeshEntry(stableKey string) error {
	_, err := db.Exec("DELETE FROM mesh_mirror WHERE stable_key = ?", stableKey)
	if err != nil {
		return fmt.Errorf("delete mesh entry: %w", err)
	}
	return nil
}

// PruneMeshMirror deletes all mirrored entries that expired before now.
// Optional housekeeping; the read path already treats them as absent.
func (db *DB) PruneMeshMirror(now time.Time) (int, error) {
	res, err := db.Exec("DELETE FROM mesh_mirror WHERE expires_at < ?", now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune mesh mirror: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
