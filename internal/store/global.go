package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// SaveGlobalCache stores or replaces the cached shared aggregate for a cell.
func (db *DB) SaveGlobalCache(st vibe.GlobalState) error {
	now := time.Now().UnixMilli()
	vecBlob := st.Vector.Encode()
	confBlob := st.Confidence.Encode()

	_, err := db.Exec(`
		INSERT INTO global_cache (stable_key, prefix, precision, vector, sample_count, confidence, updated_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stable_key) DO UPDATE SET
			vector = excluded.vector,
			sample_count = excluded.sample_count,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at,
			cached_at = excluded.cached_at
	`, st.Key.StableKey(), st.Key.Prefix, st.Key.Precision,
		vecBlob, st.SampleCount, confBlob, st.UpdatedAt.UnixMilli(), now)
	if err != nil {
		return fmt.Errorf("save global cache: %w", err)
	}
	return nil
}

// GetGlobalCache returns the cached aggregate for a stable key, or nil if
// no row exists. A malformed stored vector is repaired in place to the
// neutral default with sample_count 0 rather than failing the read.
func (db *DB) GetGlobalCache(stableKey string) (*vibe.GlobalState, error) {
	var (
		prefix      string
		precision   int
		vecBlob     []byte
		sampleCount int
		confBlob    []byte
		updatedAt   int64
	)

	err := db.QueryRow(`
		SELECT prefix, precision, vector, sample_count, confidence, updated_at
		FROM global_cache WHERE stable_key = ?
	`, stableKey).Scan(&prefix, &precision, &vecBlob, &sampleCount, &confBlob, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get global cache: %w", err)
	}

	key := cell.Key{Prefix: prefix, Precision: precision}
	st := vibe.GlobalState{
		Key:         key,
		SampleCount: sampleCount,
		UpdatedAt:   time.UnixMilli(updatedAt),
	}

	vec, ok := vibe.Decode(vecBlob)
	if !ok {
		st.Vector = vibe.Neutral()
		st.SampleCount = 0
		return &st, nil
	}
	st.Vector = vec
	if conf, ok := vibe.Decode(confBlob); ok {
		st.Confidence = conf
	}
	return &st, nil
}
