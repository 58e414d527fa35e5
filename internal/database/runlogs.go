package database

import (
	"context"
	"fmt"
)

// AppendRunLog inserts one audit row. Run logs are never deduplicated.
func (db *DB) AppendRunLog(ctx context.Context, rl RunLog) (int64, error) {
	return appendRunLog(ctx, db.conn, rl)
}

func appendRunLog(ctx context.Context, q querier, rl RunLog) (int64, error) {
	if !rl.Status.Valid() {
		return 0, fmt.Errorf("invalid run status %q", rl.Status)
	}
	detail := rl.ErrorDetail
	if rl.Status != StatusError {
		detail = nil
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO run_logs (status, records_found, records_saved, error_detail)
		VALUES (?, ?, ?, ?)`,
		string(rl.Status), rl.RecordsFound, rl.RecordsSaved, detail,
	)
	if err != nil {
		return 0, classify("appending run log", err)
	}
	return result.LastInsertId()
}

// RecentRunLogs returns up to limit run logs, newest first.
func (db *DB) RecentRunLogs(ctx context.Context, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, status, records_found, records_saved, error_detail, timestamp
		FROM run_logs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, classify("listing run logs", err)
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var rl RunLog
		var status string
		if err := rows.Scan(&rl.ID, &status, &rl.RecordsFound, &rl.RecordsSaved,
			&rl.ErrorDetail, &rl.Timestamp); err != nil {
			return nil, err
		}
		rl.Status = RunStatus(status)
		logs = append(logs, rl)
	}
	return logs, rows.Err()
}
