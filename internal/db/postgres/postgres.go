// Package postgres implements db.SQLStore over a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/scopedex/internal/db"
)

// Compile-time check: Store implements db.SQLStore.
var _ db.SQLStore = (*Store)(nil)

// Config configures the pool.
type Config struct {
	URL      string
	MaxConns int32
	SlowMs   int
}

// Store is a pgxpool-backed SQL store with optional query tracing.
type Store struct {
	pool   *pgxpool.Pool
	tracer QueryTracer
	slowUS int64
}

var newPool = pgxpool.NewWithConfig

// Open parses the URL, applies pool limits and connects lazily.
func Open(ctx context.Context, cfg Config, tracer QueryTracer) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres url is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &Store{pool: pool, tracer: tracer, slowUS: int64(cfg.SlowMs) * 1000}, nil
}

// Ping checks connectivity with a trivial round-trip.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady blocks until Postgres answers a ping or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, "postgres", timeout)
}

// Close closes the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Exec runs a statement and returns the affected row count.
func (s *Store) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return execOn(ctx, s.pool, s.trace, sql, args)
}

// Query runs a statement returning rows.
func (s *Store) Query(ctx context.Context, sql string, args ...any) (db.Rows, error) {
	return queryOn(ctx, s.pool, s.trace, sql, args)
}

// QueryRow runs a statement returning at most one row.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...any) db.Row {
	return queryRowOn(ctx, s.pool, s.trace, sql, args)
}

// Tx runs fn inside a transaction; any error from fn rolls back.
func (s *Store) Tx(ctx context.Context, fn func(q db.Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &db.Error{Op: db.OpBegin, Err: err}
	}
	if err := fn(txQuerier{tx: tx, trace: s.trace}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &db.Error{Op: db.OpCommit, Err: classify(err)}
	}
	return nil
}

func (s *Store) trace(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if s.tracer == nil {
		return
	}
	elapsed := time.Since(start).Microseconds()
	s.tracer.OnQuery(ctx, QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsed,
		Err:       err,
		Slow:      s.slowUS > 0 && elapsed >= s.slowUS,
	})
}

type traceFn func(ctx context.Context, sql string, args []any, start time.Time, err error)

type txQuerier struct {
	tx    pgx.Tx
	trace traceFn
}

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return execOn(ctx, t.tx, t.trace, sql, args)
}

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (db.Rows, error) {
	return queryOn(ctx, t.tx, t.trace, sql, args)
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) db.Row {
	return queryRowOn(ctx, t.tx, t.trace, sql, args)
}
