package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPoolExhausted is returned when no connection frees up within the acquire timeout.
var ErrPoolExhausted = errors.New("database connection pool exhausted")

// Pool hands out dedicated connections for the lifetime of a request.
type Pool struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

// NewPool wraps db. A zero acquireTimeout waits until ctx is done.
func NewPool(db *sql.DB, acquireTimeout time.Duration) *Pool {
	return &Pool{db: db, acquireTimeout: acquireTimeout}
}

// DB returns the underlying handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Acquire checks a connection out of the pool. The caller must Release it.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.db == nil {
		return nil, sql.ErrConnDone
	}

	acquireCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		// Only our own deadline means the pool stayed busy; a cancelled
		// request context is reported as-is.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrPoolExhausted
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Conn is a single checked-out connection. It satisfies QueryExecutor.
type Conn struct {
	conn *sql.Conn
	once sync.Once
	err  error
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// Release returns the connection to the pool. Repeated calls are no-ops.
func (c *Conn) Release() error {
	c.once.Do(func() {
		c.err = c.conn.Close()
	})
	return c.err
}
