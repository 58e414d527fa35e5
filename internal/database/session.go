package database

import (
	"context"
)

// Session is a dedicated store connection held for the duration of one
// ingestion run.
type Session struct {
	conn querierCloser
}

type querierCloser interface {
	querier
	Close() error
}

// Acquire takes a connection out of the pool for one run. Callers must call
// Release when the run ends.
func (db *DB) Acquire(ctx context.Context) (*Session, error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return nil, classify("acquiring connection", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, classify("pinging store", err)
	}
	return &Session{conn: conn}, nil
}

// SaveNotice is DB.SaveNotice on the session's connection.
func (s *Session) SaveNotice(ctx context.Context, n Notice) (SaveResult, error) {
	return saveNotice(ctx, s.conn, n)
}

// AppendRunLog is DB.AppendRunLog on the session's connection.
func (s *Session) AppendRunLog(ctx context.Context, rl RunLog) (int64, error) {
	return appendRunLog(ctx, s.conn, rl)
}

// Release returns the connection to the pool.
func (s *Session) Release() error {
	return s.conn.Close()
}
