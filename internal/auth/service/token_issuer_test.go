package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/social-auth/internal/common/crypto"
)

func TestTokenIssuer_IssuePair(t *testing.T) {
	mockClock := clock.NewMockClock(testStart)
	issuer := newTestIssuer(mockClock)

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.AccessToken == pair.RefreshToken {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	if !pair.AccessExpiresAt.Equal(testStart.Add(testAccessTTL)) {
		t.Errorf("AccessExpiresAt = %v", pair.AccessExpiresAt)
	}
	if !pair.RefreshExpiresAt.Equal(testStart.Add(testRefreshTTL)) {
		t.Errorf("RefreshExpiresAt = %v", pair.RefreshExpiresAt)
	}

	access, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if access.Sub != "user-1" || access.ID == "" {
		t.Errorf("unexpected access payload: %+v", access)
	}
	if !access.IssuedAt.Equal(testStart) {
		t.Errorf("IssuedAt = %v, want %v", access.IssuedAt, testStart)
	}

	refresh, err := issuer.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if refresh.Sub != "user-1" {
		t.Errorf("refresh sub = %q", refresh.Sub)
	}
}

func TestTokenIssuer_SameSecondPairsDiffer(t *testing.T) {
	issuer := newTestIssuer(clock.NewMockClock(testStart))

	first, _ := issuer.IssuePair("user-1")
	second, _ := issuer.IssuePair("user-1")
	if first.RefreshToken == second.RefreshToken || first.AccessToken == second.AccessToken {
		t.Error("tokens issued in the same second must still be distinct")
	}
}

func TestTokenIssuer_SecretsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(clock.NewMockClock(testStart))
	pair, _ := issuer.IssuePair("user-1")

	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
}

// A token signed with the right secret but the wrong type claim is still
// rejected, which covers deployments that reuse one secret by mistake.
func TestTokenIssuer_TypeClaimEnforced(t *testing.T) {
	mockClock := clock.NewMockClock(testStart)
	issuer := NewTokenIssuer(TokenIssuerConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testAccessSecret,
		AccessTTL:     testAccessTTL,
		RefreshTTL:    testRefreshTTL,
	}, commoncrypto.NewUUIDGenerator(), mockClock)

	pair, _ := issuer.IssuePair("user-1")
	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_Expiry(t *testing.T) {
	mockClock := clock.NewMockClock(testStart)
	issuer := newTestIssuer(mockClock)
	pair, _ := issuer.IssuePair("user-1")

	mockClock.Advance(testAccessTTL - time.Second)
	if _, err := issuer.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("access token should still be valid: %v", err)
	}

	mockClock.Advance(2 * time.Second)
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired access token accepted: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("refresh token should outlive access token: %v", err)
	}

	mockClock.Advance(testRefreshTTL)
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired refresh token accepted: %v", err)
	}
}

func TestTokenIssuer_RejectsMalformedAndForeignTokens(t *testing.T) {
	issuer := newTestIssuer(clock.NewMockClock(testStart))
	pair, _ := issuer.IssuePair("user-1")

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, tokenClaims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
		},
	}).SignedString([]byte(testAccessSecret))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type:             tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(testAccessSecret))

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type:             tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour))},
	}).SignedString([]byte(testAccessSecret))

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
		},
	}).SignedString([]byte("some-other-secret-0123456789abcdefghij"))

	parts := strings.Split(pair.AccessToken, ".")
	swapped := parts[0] + "." + parts[1] + "." + strings.Split(pair.RefreshToken, ".")[2]

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not-a-jwt",
		"forged":      forged,
		"swapped sig": swapped,
		"wrong alg":   hs512,
		"missing exp": noExp,
		"missing sub": noSub,
	}
	for name, token := range cases {
		if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
