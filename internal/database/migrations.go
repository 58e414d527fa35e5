package database

import (
	"context"
	"database/sql"
)

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "notices table",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS notices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    publication_date TEXT NOT NULL,
    attachment_refs TEXT NOT NULL DEFAULT '[]',
    category TEXT NOT NULL DEFAULT 'General',
    source TEXT NOT NULL DEFAULT 'unknown',
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(title, publication_date)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "run logs and notice indexes",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			// Tables from before the migration system have no UNIQUE clause.
			_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS run_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    status TEXT NOT NULL CHECK(status IN ('success', 'demo_mode', 'error')),
    records_found INTEGER NOT NULL DEFAULT 0,
    records_saved INTEGER NOT NULL DEFAULT 0,
    error_detail TEXT,
    timestamp TEXT DEFAULT (datetime('now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notices_identity ON notices(title, publication_date);
CREATE INDEX IF NOT EXISTS idx_notices_publication ON notices(publication_date);
CREATE INDEX IF NOT EXISTS idx_notices_category ON notices(category);
CREATE INDEX IF NOT EXISTS idx_notices_created ON notices(created_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
