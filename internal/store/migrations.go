package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "global_cache: on-device mirror of the shared cell aggregate",
		SQL: `
CREATE TABLE global_cache (
    stable_key   TEXT PRIMARY KEY,
    prefix       TEXT NOT NULL,
    precision    INTEGER NOT NULL CHECK (precision >= 1),
    vector       BLOB NOT NULL,
    sample_count INTEGER NOT NULL DEFAULT 0,
    confidence   BLOB,
    updated_at   INTEGER NOT NULL,
    cached_at    INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "personal_deltas: private per-agent adjustment vectors",
		SQL: `
CREATE TABLE personal_deltas (
    agent_id     TEXT NOT NULL,
    stable_key   TEXT NOT NULL,
    prefix       TEXT NOT NULL,
    precision    INTEGER NOT NULL CHECK (precision >= 1),
    delta        BLOB NOT NULL,
    visit_count  INTEGER NOT NULL DEFAULT 0 CHECK (visit_count >= 0),
    updated_at   INTEGER NOT NULL,

    PRIMARY KEY (agent_id, stable_key)
);

CREATE INDEX idx_deltas_agent ON personal_deltas(agent_id);
`,
	},
	{
		Version:     3,
		Description: "mesh_mirror: best-effort durable copy of gossiped peer deltas",
		SQL: `
CREATE TABLE mesh_mirror (
    stable_key  TEXT PRIMARY KEY,
    delta       BLOB NOT NULL,
    received_at INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL
);

CREATE INDEX idx_mesh_expires ON mesh_mirror(expires_at);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
