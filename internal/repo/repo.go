package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/events"
)

// Repo is the relational record store.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
	Events  events.Writer
}

func New(conn *sql.DB, dialect db.Dialect) Repo {
	return Repo{DB: conn, Dialect: dialect, Events: events.Writer{Dialect: dialect}}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r Repo) q(query string) string {
	return db.Rebind(r.Dialect, query)
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, r.q(query), args...)
	}
	return r.DB.ExecContext(ctx, r.q(query), args...)
}

// Ping checks store connectivity.
func (r Repo) Ping(ctx context.Context) error {
	if err := r.DB.PingContext(ctx); err != nil {
		return domain.StoreError{Op: "ping", Err: err}
	}
	return nil
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf domain.NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	var se domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return domain.StoreError{Op: op, Err: err}
}

func notFoundOr(op, kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Kind: kind, ID: id}
	}
	return storeErr(op, err)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return db.FormatTime(*t)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func parseTime(s string) (time.Time, error) {
	t, err := db.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
