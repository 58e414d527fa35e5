package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func rawDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateFreshStore(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(context.Background(), db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("version = %d, want %d", version, latestVersion())
	}

	var journal string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&journal); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if journal != "wal" {
		t.Errorf("journal_mode = %q, want wal", journal)
	}
}

func TestMigrateAdoptsEarlierNoticesTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "earlier.db")

	// An earlier scraper wrote notices without an identity constraint or user_version.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	_, err = raw.Exec(`CREATE TABLE notices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		publication_date TEXT NOT NULL,
		attachment_refs TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL DEFAULT 'General',
		source TEXT NOT NULL DEFAULT 'unknown',
		created_at TEXT DEFAULT (datetime('now'))
	)`)
	if err != nil {
		t.Fatalf("create earlier table: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	version, err := getSchemaVersion(ctx, db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("version = %d, want %d", version, latestVersion())
	}

	n := Notice{Title: "Legacy", PublicationDate: ParseDate("2024-01-01")}
	if _, err := insertNotice(ctx, db.conn, n); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	res, err := insertNotice(ctx, db.conn, n)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if res != AlreadyPresent {
		t.Errorf("second insert = %s, want already_present", res)
	}
}

func TestMigrateRejectsForeignNoticesTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "foreign.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec(`CREATE TABLE notices (id INTEGER PRIMARY KEY, subject TEXT)`); err != nil {
		t.Fatalf("create foreign table: %v", err)
	}
	raw.Close()

	_, err = Open(dbPath)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("Open err = %v, want ErrSchema", err)
	}
}

func TestMigrateTwiceKeepsVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, err := getSchemaVersion(context.Background(), db2.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("version = %d, want %d", version, latestVersion())
	}
}

func TestEmptyFileIsNotLegacy(t *testing.T) {
	conn := rawDB(t, "empty.db")
	ctx := context.Background()

	version, err := getSchemaVersion(ctx, conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}

	legacy, err := isLegacyDB(ctx, conn)
	if err != nil {
		t.Fatalf("isLegacyDB: %v", err)
	}
	if legacy {
		t.Error("empty file reported as legacy")
	}
}

func TestPendingMigrations(t *testing.T) {
	if got := len(pending(0)); got != len(migrations) {
		t.Errorf("pending(0) = %d migrations, want %d", got, len(migrations))
	}
	if got := pending(latestVersion()); len(got) != 0 {
		t.Errorf("pending(latest) = %d migrations, want 0", len(got))
	}
	if got := pending(1); len(got) != 1 || got[0].Version != 2 {
		t.Errorf("pending(1) = %+v, want only v2", got)
	}
}
