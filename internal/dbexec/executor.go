// Package dbexec provides database query execution abstractions.
// Requests run their queries on a single pooled connection acquired up front.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution over a pool handle or a held connection.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}

type executorContextKey struct{}

// WithExecutor stores the request's executor in the context.
func WithExecutor(ctx context.Context, executor QueryExecutor) context.Context {
	return context.WithValue(ctx, executorContextKey{}, executor)
}

// ExecutorFromContext returns the executor stored by WithExecutor.
func ExecutorFromContext(ctx context.Context) (QueryExecutor, bool) {
	if ctx == nil {
		return nil, false
	}
	executor, ok := ctx.Value(executorContextKey{}).(QueryExecutor)
	return executor, ok && executor != nil
}
