package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/social-auth/internal/observability/metrics"
)

const (
	TableUsers         = "users"
	TableRefreshTokens = "refresh_tokens"

	uniqueViolationCode = "23505"
)

// Op names a single statement for metrics and error wrapping.
type Op struct {
	Name  string
	Table string
}

func UserOp(name string) Op {
	return Op{Name: name, Table: TableUsers}
}

func RefreshTokenOp(name string) Op {
	return Op{Name: name, Table: TableRefreshTokens}
}

func (o Op) Observe(start time.Time) {
	metrics.DBQueryDurationSeconds.WithLabelValues(o.Name, o.Table).Observe(time.Since(start).Seconds())
}

// Finish records the statement duration and maps err. pgx.ErrNoRows turns
// into notFound when notFound is set; anything else is counted and wrapped.
func (o Op) Finish(start time.Time, err, notFound error) error {
	o.Observe(start)

	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}

	metrics.DBQueryErrors.WithLabelValues(o.Name, o.Table, errorClass(err)).Inc()
	return fmt.Errorf("failed to %s: %w", o.Name, err)
}

// UniqueViolation returns the constraint name when err is a unique
// violation reported by the server.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// errorClass keeps the error_type label bounded to SQLSTATE classes.
func errorClass(err error) string {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && len(pgErr.Code) >= 2:
		return "sqlstate_" + pgErr.Code[:2]
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, pgx.ErrTxClosed):
		return "tx_closed"
	default:
		return "other"
	}
}
