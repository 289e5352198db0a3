// Package pgx stores users, accounts, sessions and alert preferences in Postgres.
package pgx

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lborres/farewatch/core"
)

//go:embed schema.sql
var schema string

// DB is the subset of *pgxpool.Pool the adapter uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Adapter struct {
	pool DB
}

var _ core.AuthStorage = (*Adapter)(nil)

func New(pool DB) *Adapter {
	return &Adapter{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (a *Adapter) Migrate(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
