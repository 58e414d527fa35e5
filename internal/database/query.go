package database

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// RecentNotices returns notices newest publication date first.
func (db *DB) RecentNotices(ctx context.Context, f NoticeFilter) ([]Notice, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var where []string
	var args []any
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	if !f.Since.IsZero() {
		where = append(where, "publication_date >= ?")
		args = append(args, FormatDate(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "publication_date <= ?")
		args = append(args, FormatDate(f.Until))
	}

	query := "SELECT " + noticeColumns + " FROM notices"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY publication_date DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("listing notices", err)
	}
	defer rows.Close()
	return scanNotices(rows)
}

// GetNotice returns a single notice by ID, or nil if it does not exist.
func (db *DB) GetNotice(ctx context.Context, id int64) (*Notice, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+noticeColumns+" FROM notices WHERE id = ?", id,
	)
	n, err := scanNotice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("loading notice", err)
	}
	return n, nil
}

// Categories returns every distinct category, alphabetically.
func (db *DB) Categories(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT DISTINCT category FROM notices ORDER BY category")
	if err != nil {
		return nil, classify("listing categories", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Statistics returns aggregate counts over the notices table. The 7-day
// window is measured on publication_date, the 24-hour window on created_at.
func (db *DB) Statistics(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	weekAgo := FormatDate(time.Now().AddDate(0, 0, -7))

	var mostRecent *string
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN publication_date >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= datetime('now', '-1 day') THEN 1 ELSE 0 END), 0),
			MAX(publication_date)
		FROM notices`, weekAgo,
	).Scan(&s.Total, &s.Last7Days, &s.Last24Hours, &mostRecent)
	if err != nil {
		return nil, classify("computing statistics", err)
	}
	if mostRecent != nil {
		if d := ParseDate(*mostRecent); !d.IsZero() {
			s.MostRecent = &d
		}
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT category, COUNT(*) AS n FROM notices GROUP BY category ORDER BY n DESC, category`)
	if err != nil {
		return nil, classify("counting categories", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, err
		}
		s.PerCategory = append(s.PerCategory, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_logs").Scan(&s.RunLogs); err != nil {
		return nil, classify("counting run logs", err)
	}
	return s, nil
}
