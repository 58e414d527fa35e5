package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openTimeout bounds schema migration when a store is opened.
const openTimeout = 30 * time.Second

// connPragmas run on every pooled connection, not just the first one.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// DB is the ingestion store: notices plus the run log, in one SQLite file.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store at dbPath and brings its schema up to date.
func Open(dbPath string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	return OpenContext(ctx, dbPath)
}

// OpenContext is Open with a caller-supplied deadline for the initial
// connection and migrations.
func OpenContext(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, classify("opening store", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, classify("connecting to store", err)
	}
	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return &DB{conn: conn, path: dbPath}, nil
}

func dsn(dbPath string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + dbPath + "?" + q.Encode()
}

// Ping verifies the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return classify("pinging store", db.conn.PingContext(ctx))
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
