package service

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/social-auth/internal/auth/repository"
	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/social-auth/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
	"github.com/AlibekovAA/social-auth/internal/common/resilience"
)

// RefreshTokenLedger is the only authority on whether a refresh token is
// usable. Records are never deleted, only revoked.
type RefreshTokenLedger struct {
	repo             authrepo.RefreshTokenRepository
	dbCircuitBreaker resilience.CircuitBreakerInterface
	idGenerator      commoncrypto.IDGenerator
	clock            clock.Clock
	refreshTokenTTL  time.Duration
	log              *logger.Logger
}

func NewRefreshTokenLedger(
	repo authrepo.RefreshTokenRepository,
	dbCircuitBreaker resilience.CircuitBreakerInterface,
	idGenerator commoncrypto.IDGenerator,
	refreshTokenTTL time.Duration,
	clock clock.Clock,
	log *logger.Logger,
) *RefreshTokenLedger {
	return &RefreshTokenLedger{
		repo:             repo,
		dbCircuitBreaker: dbCircuitBreaker,
		idGenerator:      idGenerator,
		clock:            clock,
		refreshTokenTTL:  refreshTokenTTL,
		log:              log,
	}
}

func (l *RefreshTokenLedger) Save(ctx context.Context, rawToken, userID string) (authdomain.RefreshToken, error) {
	record, err := l.newRecord(rawToken, userID)
	if err != nil {
		return authdomain.RefreshToken{}, err
	}

	err = l.call(ctx, func(ctx context.Context) error {
		return l.repo.Create(ctx, record)
	})
	if err != nil {
		l.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "save_refresh_token_failed",
		}).Errorf("failed to save refresh token: %v", err)
		return authdomain.RefreshToken{}, handleCircuitBreakerError(err)
	}

	incrementRefreshTokensIssued()
	record.RawToken = rawToken
	return record, nil
}

func (l *RefreshTokenLedger) FindActive(ctx context.Context, rawToken, userID string) (authdomain.RefreshToken, error) {
	hash := commoncrypto.HashRefreshToken(rawToken)
	now := l.clock.Now()

	var record authdomain.RefreshToken
	err := l.call(ctx, func(ctx context.Context) error {
		found, err := l.repo.FindActive(ctx, hash, userID, now)
		if err != nil {
			return err
		}
		record = found
		return nil
	})
	if err != nil {
		return authdomain.RefreshToken{}, handleCircuitBreakerError(err)
	}
	return record, nil
}

func (l *RefreshTokenLedger) Revoke(ctx context.Context, recordID string) error {
	err := l.call(ctx, func(ctx context.Context) error {
		return l.repo.RevokeByID(ctx, recordID)
	})
	if err != nil {
		return handleCircuitBreakerError(err)
	}
	addRefreshTokensRevoked(1)
	return nil
}

// RevokeByRawToken revokes every active record for the token and reports
// whether the update went through. Failures are logged, never returned.
func (l *RefreshTokenLedger) RevokeByRawToken(ctx context.Context, rawToken string) bool {
	if rawToken == "" {
		return false
	}
	hash := commoncrypto.HashRefreshToken(rawToken)

	var revoked int64
	err := l.call(ctx, func(ctx context.Context) error {
		n, err := l.repo.RevokeByTokenHash(ctx, hash)
		revoked = n
		return err
	})
	if err != nil {
		l.log.WithFields(ctx, logger.Fields{
			"action": "revoke_refresh_token_failed",
		}).Warnf("failed to revoke refresh token: %v", err)
		return false
	}

	addRefreshTokensRevoked(revoked)
	return true
}

// Rotate consumes the presented token and stores the replacement inside one
// store transaction. Concurrent rotations of the same token serialize on the
// store; every caller but the first gets ErrRefreshTokenNotFound.
func (l *RefreshTokenLedger) Rotate(
	ctx context.Context,
	rawToken, userID string,
	issue func() (authdomain.TokenPair, error),
) (authdomain.TokenPair, error) {
	hash := commoncrypto.HashRefreshToken(rawToken)

	var pair authdomain.TokenPair
	err := l.call(ctx, func(ctx context.Context) error {
		return l.repo.TxManager().WithTx(ctx, func(ctx context.Context, tx authrepo.RefreshTokenTx) error {
			current, err := tx.FindActiveForUpdate(ctx, hash, userID, l.clock.Now())
			if err != nil {
				return err
			}
			if err := tx.RevokeByID(ctx, current.ID); err != nil {
				return err
			}

			issued, err := issue()
			if err != nil {
				return err
			}
			next, err := l.newRecord(issued.RefreshToken, userID)
			if err != nil {
				return err
			}
			if err := tx.Create(ctx, next); err != nil {
				return err
			}

			pair = issued
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			l.log.WithFields(ctx, logger.Fields{
				"user_id": userID,
				"action":  "rotate_refresh_token_failed",
			}).Errorf("failed to rotate refresh token: %v", err)
		}
		return authdomain.TokenPair{}, handleCircuitBreakerError(err)
	}

	addRefreshTokensRevoked(1)
	incrementRefreshTokensIssued()
	incrementRefreshTokensUsed()
	return pair, nil
}

func (l *RefreshTokenLedger) newRecord(rawToken, userID string) (authdomain.RefreshToken, error) {
	id, err := l.idGenerator.NewID()
	if err != nil {
		return authdomain.RefreshToken{}, newInternalError("generate refresh token id", err)
	}

	now := l.clock.Now()
	return authdomain.RefreshToken{
		ID:        id,
		TokenHash: commoncrypto.HashRefreshToken(rawToken),
		UserID:    userID,
		ExpiresAt: now.Add(l.refreshTokenTTL),
		CreatedAt: now,
	}, nil
}

func (l *RefreshTokenLedger) call(ctx context.Context, fn func(context.Context) error) error {
	if l.dbCircuitBreaker == nil {
		return fn(ctx)
	}
	return l.dbCircuitBreaker.Call(ctx, fn)
}

// IsExpectedStoreOutcome reports store errors that describe state rather
// than a failing backend. Circuit breakers must not count them.
func IsExpectedStoreOutcome(err error) bool {
	if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
		return true
	}
	if _, ok := commonerrors.AsDomainError(err); ok {
		return true
	}
	return isExpectedUserStoreOutcome(err)
}
