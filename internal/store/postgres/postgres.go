// Package postgres implements store.Repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Repository is the PostgreSQL backed store.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	return pool, nil
}

// New wraps an existing pool. The repository owns the pool and closes it on Close.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// WithTx implements store.Repository.
func (r *Repository) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.withTx(ctx, func(q querier) error {
		return fn(&pgTx{q: q})
	})
}

func (r *Repository) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}

// persistenceErr maps driver errors onto the domain taxonomy.
func persistenceErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &domain.ConflictError{Message: fmt.Sprintf("%s: %s", op, pgErr.Detail)}
		case "23514", "23502":
			return &domain.ValidationError{Message: fmt.Sprintf("%s: %s", op, pgErr.Message)}
		case "23503":
			return &domain.NotFoundError{Entity: "referenced row", ID: pgErr.Detail}
		}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func notFoundOr(op, entity string, id any, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFound(entity, id)
	}
	return persistenceErr(op, err)
}

// Values cross the wire as text so that no driver-side decimal or date codec
// is needed.

func decimalArg(d decimal.Decimal) string {
	return d.String()
}

func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func dateArg(d *civil.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func parseDate(s *string) (*civil.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := civil.ParseDate(*s)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", *s, err)
	}
	return &d, nil
}

func metadataArg(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ store.Repository = (*Repository)(nil)
