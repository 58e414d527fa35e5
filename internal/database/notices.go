package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveNotice stores n unless a notice with the same title and publication
// date already exists. Existing rows are never modified.
func (db *DB) SaveNotice(ctx context.Context, n Notice) (SaveResult, error) {
	return saveNotice(ctx, db.conn, n)
}

// NoticeExists reports whether a notice with this identity is stored.
func (db *DB) NoticeExists(ctx context.Context, title string, date string) (bool, error) {
	return noticeExists(ctx, db.conn, title, date)
}

func saveNotice(ctx context.Context, q querier, n Notice) (SaveResult, error) {
	date := FormatDate(n.PublicationDate)

	exists, err := noticeExists(ctx, q, n.Title, date)
	if err != nil {
		return 0, err
	}
	if exists {
		return AlreadyPresent, nil
	}
	return insertNotice(ctx, q, n)
}

func noticeExists(ctx context.Context, q querier, title, date string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM notices WHERE title = ? AND publication_date = ? LIMIT 1`,
		title, date,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify("checking notice", err)
	}
	return true, nil
}

// insertNotice writes a new row. A concurrent writer may have stored the same
// identity since the existence check; the UNIQUE constraint catches that.
func insertNotice(ctx context.Context, q querier, n Notice) (SaveResult, error) {
	refs := n.AttachmentRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return 0, err
	}

	category := strings.TrimSpace(n.Category)
	if category == "" {
		category = DefaultCategory
	}
	source := strings.TrimSpace(n.Source)
	if source == "" {
		source = DefaultSource
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO notices (title, body, publication_date, attachment_refs, category, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Title, n.Body, FormatDate(n.PublicationDate), string(refsJSON), category, source,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return AlreadyPresent, nil
		}
		return 0, classify("inserting notice", err)
	}
	return Inserted, nil
}

const noticeColumns = `id, title, body, publication_date, attachment_refs, category, source, created_at`

func scanNotices(rows *sql.Rows) ([]Notice, error) {
	var notices []Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		notices = append(notices, *n)
	}
	return notices, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotice(row scanner) (*Notice, error) {
	var n Notice
	var date, refsJSON string
	if err := row.Scan(&n.ID, &n.Title, &n.Body, &date, &refsJSON,
		&n.Category, &n.Source, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.PublicationDate = ParseDate(date)
	if err := json.Unmarshal([]byte(refsJSON), &n.AttachmentRefs); err != nil {
		n.AttachmentRefs = nil
	}
	return &n, nil
}
