package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row abstracts pgx.Row for testability.
type Row interface {
	Scan(dest ...any) error
}

// Rows abstracts pgx.Rows for testability.
type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// CommandTag abstracts the result of Exec calls.
type CommandTag interface {
	RowsAffected() int64
}

// DBConn provides the minimum query surface for services. Both the pool and
// an open transaction satisfy it.
type DBConn interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Tx mirrors the transaction methods used by services.
type Tx interface {
	DBConn
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB adds transaction support on top of DBConn.
type DB interface {
	DBConn
	Begin(ctx context.Context) (Tx, error)
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxPoolLike interface {
	pgxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier adapts a pgx pool or transaction to DBConn. pgx.Rows and
// pgconn.CommandTag already satisfy Rows and CommandTag.
type querier struct {
	q pgxQuerier
}

func (c querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	tag, err := c.q.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (c querier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return c.q.QueryRow(ctx, sql, args...)
}

// PoolAdapter wraps *pgxpool.Pool to satisfy DB.
type PoolAdapter struct {
	querier
	pool pgxPoolLike
}

func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	if pool == nil {
		return &PoolAdapter{}
	}
	return newPoolAdapter(pool)
}

func newPoolAdapter(pool pgxPoolLike) *PoolAdapter {
	return &PoolAdapter{querier: querier{q: pool}, pool: pool}
}

func (p *PoolAdapter) Begin(ctx context.Context) (Tx, error) {
	if p.pool == nil {
		return nil, errors.New("database pool not configured")
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{querier: querier{q: tx}, tx: tx}, nil
}

type txAdapter struct {
	querier
	tx pgx.Tx
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
