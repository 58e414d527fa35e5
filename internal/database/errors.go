package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrConnectionUnavailable means the store cannot be reached; the
	// current run should abort.
	ErrConnectionUnavailable = errors.New("store connection unavailable")

	// ErrSchema means a statement or table is malformed. It is fatal.
	ErrSchema = errors.New("store schema error")
)

// isConstraintViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// classify wraps a raw driver error with ErrConnectionUnavailable or
// ErrSchema. op describes the failed statement.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionUnavailable) || errors.Is(err, ErrSchema) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w: %v", op, ErrConnectionUnavailable, err)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED,
			sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_READONLY,
			sqlite3.SQLITE_FULL, sqlite3.SQLITE_CORRUPT:
			return fmt.Errorf("%s: %w: %v", op, ErrConnectionUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrSchema, err)
}
