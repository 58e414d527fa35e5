package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// identityColumns must exist in any notices table the store adopts.
var identityColumns = []string{"title", "publication_date"}

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(ctx context.Context, conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, classify("reading schema version", err)
	}
	return version, nil
}

// isLegacyDB reports whether a notices table exists while user_version is
// still 0, i.e. the file was written by an earlier scraper. A legacy table
// missing the identity columns cannot be adopted and is a schema error.
func isLegacyDB(ctx context.Context, conn *sql.DB) (bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT name FROM pragma_table_info('notices')")
	if err != nil {
		return false, classify("inspecting notices table", err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, classify("inspecting notices table", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return false, classify("inspecting notices table", err)
	}
	if len(cols) == 0 {
		return false, nil
	}
	for _, c := range identityColumns {
		if !cols[c] {
			return false, fmt.Errorf("legacy notices table lacks column %q: %w", c, ErrSchema)
		}
	}
	return true, nil
}

// migrate applies every pending migration in its own transaction and records
// progress in PRAGMA user_version.
func migrate(ctx context.Context, conn *sql.DB) error {
	current, err := getSchemaVersion(ctx, conn)
	if err != nil {
		return err
	}

	if current == 0 {
		legacy, err := isLegacyDB(ctx, conn)
		if err != nil {
			return err
		}
		if legacy {
			// v1 only creates the table; v2 still adds the identity index.
			log.Printf("Adopting existing notices table as schema version 1")
			if err := setSchemaVersion(ctx, conn, 1); err != nil {
				return err
			}
			current = 1
		}
	}

	for _, m := range pending(current) {
		log.Printf("Applying migration %d: %s", m.Version, m.Description)
		if err := apply(ctx, conn, m); err != nil {
			return err
		}
	}
	return nil
}

// pending returns the migrations above version, in order.
func pending(version int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > version {
			out = append(out, m)
		}
	}
	return out
}

func apply(ctx context.Context, conn *sql.DB, m Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Sprintf("beginning migration %d", m.Version), err)
	}
	if err := m.Up(ctx, tx); err != nil {
		tx.Rollback()
		return classify(fmt.Sprintf("migration %d (%s)", m.Version, m.Description), err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Sprintf("committing migration %d", m.Version), err)
	}
	// modernc/sqlite does not honour user_version inside a transaction; the
	// DDL is idempotent, so a crash before this line only re-runs m.
	return setSchemaVersion(ctx, conn, m.Version)
}

func setSchemaVersion(ctx context.Context, conn *sql.DB, version int) error {
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return classify(fmt.Sprintf("setting schema version %d", version), err)
	}
	return nil
}
