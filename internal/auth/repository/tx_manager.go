package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/social-auth/internal/observability/metrics"
)

const txName = "refresh_token_rotation"

type RefreshTokenTxManager struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenTxManager(pool *pgxpool.Pool) *RefreshTokenTxManager {
	return &RefreshTokenTxManager{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise, including on
// panic.
func (m *RefreshTokenTxManager) WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin refresh token tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			metrics.DBTransactionsTotal.WithLabelValues(txName, "rollback").Inc()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			metrics.DBTransactionsTotal.WithLabelValues(txName, "rollback").Inc()
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			metrics.DBTransactionsTotal.WithLabelValues(txName, "commit_failed").Inc()
			err = fmt.Errorf("failed to commit refresh token tx: %w", commitErr)
			return
		}
		metrics.DBTransactionsTotal.WithLabelValues(txName, "commit").Inc()
	}()

	err = fn(ctx, &pgRefreshTokenTx{tx: tx})
	return err
}
