package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
	"github.com/AlibekovAA/social-auth/internal/common/db"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository interface {
	Create(ctx context.Context, token authdomain.RefreshToken) error
	FindActive(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error)
	RevokeByID(ctx context.Context, id string) error
	RevokeByTokenHash(ctx context.Context, hash string) (int64, error)
	TxManager() TxManager
}

type TxManager interface {
	WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) error
}

// RefreshTokenTx is the subset of ledger operations available inside a
// rotation transaction.
type RefreshTokenTx interface {
	FindActiveForUpdate(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error)
	RevokeByID(ctx context.Context, id string) error
	Create(ctx context.Context, token authdomain.RefreshToken) error
}

const refreshTokenColumns = `id, token_hash, user_id, is_revoked, expires_at, created_at`

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRefreshTokenRepository struct {
	pool  *pgxpool.Pool
	txMgr *RefreshTokenTxManager
}

func NewPgRefreshTokenRepository(pool *pgxpool.Pool) *PgRefreshTokenRepository {
	return &PgRefreshTokenRepository{
		pool:  pool,
		txMgr: NewRefreshTokenTxManager(pool),
	}
}

func (r *PgRefreshTokenRepository) TxManager() TxManager {
	return r.txMgr
}

func (r *PgRefreshTokenRepository) Create(ctx context.Context, token authdomain.RefreshToken) error {
	return createRefreshToken(ctx, r.pool, token, "create refresh token")
}

func (r *PgRefreshTokenRepository) FindActive(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+refreshTokenColumns+`
		 FROM refresh_tokens
		 WHERE token_hash = $1 AND user_id = $2 AND is_revoked = FALSE AND expires_at > $3
		 LIMIT 1`,
		hash,
		userID,
		now,
	)
	return scanRefreshToken(row, "find active refresh token", start)
}

func (r *PgRefreshTokenRepository) RevokeByID(ctx context.Context, id string) error {
	return revokeRefreshTokenByID(ctx, r.pool, id, "revoke refresh token")
}

func (r *PgRefreshTokenRepository) RevokeByTokenHash(ctx context.Context, hash string) (int64, error) {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE token_hash = $1 AND is_revoked = FALSE`,
		hash,
	)
	if err := db.RefreshTokenOp("revoke refresh tokens by hash").Finish(start, err, nil); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type pgRefreshTokenTx struct {
	tx pgx.Tx
}

func (t *pgRefreshTokenTx) FindActiveForUpdate(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	start := time.Now()
	row := t.tx.QueryRow(
		ctx,
		`SELECT `+refreshTokenColumns+`
		 FROM refresh_tokens
		 WHERE token_hash = $1 AND user_id = $2 AND is_revoked = FALSE AND expires_at > $3
		 LIMIT 1
		 FOR UPDATE`,
		hash,
		userID,
		now,
	)
	return scanRefreshToken(row, "find active refresh token in tx", start)
}

func (t *pgRefreshTokenTx) RevokeByID(ctx context.Context, id string) error {
	return revokeRefreshTokenByID(ctx, t.tx, id, "revoke refresh token in tx")
}

func (t *pgRefreshTokenTx) Create(ctx context.Context, token authdomain.RefreshToken) error {
	return createRefreshToken(ctx, t.tx, token, "create refresh token in tx")
}

func createRefreshToken(ctx context.Context, q execer, token authdomain.RefreshToken, operation string) error {
	start := time.Now()
	_, err := q.Exec(
		ctx,
		`INSERT INTO refresh_tokens (id, token_hash, user_id, is_revoked, expires_at, created_at)
		 VALUES ($1, $2, $3, FALSE, $4, $5)`,
		token.ID,
		token.TokenHash,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return db.RefreshTokenOp(operation).Finish(start, err, nil)
}

// revokeRefreshTokenByID only flips records that are still active, so two
// concurrent revocations of the same record cannot both succeed.
func revokeRefreshTokenByID(ctx context.Context, q execer, id, operation string) error {
	start := time.Now()
	tag, err := q.Exec(
		ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1 AND is_revoked = FALSE`,
		id,
	)
	if err := db.RefreshTokenOp(operation).Finish(start, err, nil); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

func scanRefreshToken(row pgx.Row, operation string, start time.Time) (authdomain.RefreshToken, error) {
	var token authdomain.RefreshToken
	err := row.Scan(&token.ID, &token.TokenHash, &token.UserID, &token.IsRevoked, &token.ExpiresAt, &token.CreatedAt)
	if err := db.RefreshTokenOp(operation).Finish(start, err, ErrRefreshTokenNotFound); err != nil {
		return authdomain.RefreshToken{}, err
	}
	return token, nil
}
