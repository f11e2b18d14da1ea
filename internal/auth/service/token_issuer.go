package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/social-auth/internal/common/crypto"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenIssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets, so neither secret validates the other kind.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	idGenerator   commoncrypto.IDGenerator
	clock         clock.Clock
	parser        *jwt.Parser
}

func NewTokenIssuer(cfg TokenIssuerConfig, idGenerator commoncrypto.IDGenerator, clock clock.Clock) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		idGenerator:   idGenerator,
		clock:         clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

func (ti *TokenIssuer) RefreshTTL() time.Duration {
	return ti.refreshTTL
}

func (ti *TokenIssuer) AccessTTL() time.Duration {
	return ti.accessTTL
}

func (ti *TokenIssuer) IssuePair(userID string) (authdomain.TokenPair, error) {
	now := ti.clock.Now()

	access, accessExp, err := ti.sign(userID, tokenTypeAccess, ti.accessSecret, now, ti.accessTTL)
	if err != nil {
		return authdomain.TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, refreshExp, err := ti.sign(userID, tokenTypeRefresh, ti.refreshSecret, now, ti.refreshTTL)
	if err != nil {
		return authdomain.TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	incrementAccessTokensIssued()

	return authdomain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (ti *TokenIssuer) VerifyAccess(token string) (authdomain.TokenPayload, error) {
	return ti.verify(token, tokenTypeAccess, ti.accessSecret)
}

func (ti *TokenIssuer) VerifyRefresh(token string) (authdomain.TokenPayload, error) {
	return ti.verify(token, tokenTypeRefresh, ti.refreshSecret)
}

func (ti *TokenIssuer) sign(userID, tokenType string, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (ti *TokenIssuer) verify(token, tokenType string, secret []byte) (authdomain.TokenPayload, error) {
	if token == "" {
		return authdomain.TokenPayload{}, ErrInvalidToken
	}

	var claims tokenClaims
	_, err := ti.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return authdomain.TokenPayload{}, ErrInvalidToken.WithCause(err)
	}

	if claims.Type != tokenType {
		return authdomain.TokenPayload{}, ErrInvalidToken.WithCause(errors.New("unexpected token type"))
	}
	if claims.Subject == "" {
		return authdomain.TokenPayload{}, ErrInvalidToken.WithCause(errors.New("missing sub claim"))
	}

	payload := authdomain.TokenPayload{
		Sub: claims.Subject,
		ID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}
