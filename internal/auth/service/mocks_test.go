package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/social-auth/internal/auth/repository"
	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/social-auth/internal/common/crypto"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
	userdomain "github.com/AlibekovAA/social-auth/internal/user/domain"
	userrepo "github.com/AlibekovAA/social-auth/internal/user/repository"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdefghijklmnop"
	testRefreshSecret = "refresh-secret-0123456789abcdefghijklmno"
	testAccessTTL     = 15 * time.Minute
	testRefreshTTL    = 7 * 24 * time.Hour
)

var testStart = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type mockUserRepo struct {
	createFunc           func(ctx context.Context, user userdomain.User) (userdomain.User, error)
	findByEmailFunc      func(ctx context.Context, email string) (userdomain.User, error)
	findByUsernameFunc   func(ctx context.Context, username string) (userdomain.User, error)
	findByIDFunc         func(ctx context.Context, id userdomain.ID) (userdomain.User, error)
	updateLastActiveFunc func(ctx context.Context, id userdomain.ID, at time.Time) error
}

func (m *mockUserRepo) Create(ctx context.Context, user userdomain.User) (userdomain.User, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return user, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (userdomain.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (userdomain.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (m *mockUserRepo) FindByID(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (m *mockUserRepo) UpdateLastActive(ctx context.Context, id userdomain.ID, at time.Time) error {
	if m.updateLastActiveFunc != nil {
		return m.updateLastActiveFunc(ctx, id, at)
	}
	return nil
}

type mockRefreshTokenRepo struct {
	createFunc            func(ctx context.Context, token authdomain.RefreshToken) error
	findActiveFunc        func(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error)
	revokeByIDFunc        func(ctx context.Context, id string) error
	revokeByTokenHashFunc func(ctx context.Context, hash string) (int64, error)
	withTxFunc            func(ctx context.Context, fn func(context.Context, authrepo.RefreshTokenTx) error) error
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, token authdomain.RefreshToken) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, token)
	}
	return nil
}

func (m *mockRefreshTokenRepo) FindActive(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, hash, userID, now)
	}
	return authdomain.RefreshToken{}, authrepo.ErrRefreshTokenNotFound
}

func (m *mockRefreshTokenRepo) RevokeByID(ctx context.Context, id string) error {
	if m.revokeByIDFunc != nil {
		return m.revokeByIDFunc(ctx, id)
	}
	return nil
}

func (m *mockRefreshTokenRepo) RevokeByTokenHash(ctx context.Context, hash string) (int64, error) {
	if m.revokeByTokenHashFunc != nil {
		return m.revokeByTokenHashFunc(ctx, hash)
	}
	return 0, nil
}

func (m *mockRefreshTokenRepo) TxManager() authrepo.TxManager {
	return m
}

func (m *mockRefreshTokenRepo) WithTx(ctx context.Context, fn func(context.Context, authrepo.RefreshTokenTx) error) error {
	if m.withTxFunc != nil {
		return m.withTxFunc(ctx, fn)
	}
	return fn(ctx, &mockRefreshTokenTx{})
}

type mockRefreshTokenTx struct {
	findActiveForUpdateFunc func(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error)
	revokeByIDFunc          func(ctx context.Context, id string) error
	createFunc              func(ctx context.Context, token authdomain.RefreshToken) error
}

func (m *mockRefreshTokenTx) FindActiveForUpdate(ctx context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	if m.findActiveForUpdateFunc != nil {
		return m.findActiveForUpdateFunc(ctx, hash, userID, now)
	}
	return authdomain.RefreshToken{}, authrepo.ErrRefreshTokenNotFound
}

func (m *mockRefreshTokenTx) RevokeByID(ctx context.Context, id string) error {
	if m.revokeByIDFunc != nil {
		return m.revokeByIDFunc(ctx, id)
	}
	return nil
}

func (m *mockRefreshTokenTx) Create(ctx context.Context, token authdomain.RefreshToken) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, token)
	}
	return nil
}

type mockCircuitBreaker struct {
	callFunc func(ctx context.Context, fn func(context.Context) error) error
}

func (m *mockCircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if m.callFunc != nil {
		return m.callFunc(ctx, fn)
	}
	return fn(ctx)
}

func newTestIssuer(c clock.Clock) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     testAccessTTL,
		RefreshTTL:    testRefreshTTL,
	}, commoncrypto.NewUUIDGenerator(), c)
}

type testEnv struct {
	svc       *AuthService
	users     userrepo.Repository
	tokens    authrepo.RefreshTokenRepository
	ledger    *RefreshTokenLedger
	issuer    *TokenIssuer
	clock     *clock.MockClock
	breaker   *mockCircuitBreaker
	memUsers  *userrepo.MemoryRepository
	memTokens *authrepo.MemoryRefreshTokenRepository
}

// setupAuthService wires the service over in-memory stores. Pass non-nil
// repos to replace them with mocks.
func setupAuthService(t *testing.T, users userrepo.Repository, tokens authrepo.RefreshTokenRepository) *testEnv {
	t.Helper()

	mockClock := clock.NewMockClock(testStart)
	env := &testEnv{clock: mockClock, breaker: &mockCircuitBreaker{}}

	if users == nil {
		env.memUsers = userrepo.NewMemoryRepository(mockClock)
		users = env.memUsers
	}
	if tokens == nil {
		env.memTokens = authrepo.NewMemoryRefreshTokenRepository()
		tokens = env.memTokens
	}
	env.users = users
	env.tokens = tokens

	log := logger.Discard()
	idGen := commoncrypto.NewUUIDGenerator()
	env.issuer = newTestIssuer(mockClock)
	env.ledger = NewRefreshTokenLedger(tokens, env.breaker, idGen, testRefreshTTL, mockClock, log)

	svc, err := NewAuthService(AuthServiceDeps{
		Users:            users,
		Ledger:           env.ledger,
		Issuer:           env.issuer,
		Hasher:           commoncrypto.NewBcryptHasher(bcrypt.MinCost),
		IDGenerator:      idGen,
		DBCircuitBreaker: env.breaker,
		Clock:            mockClock,
		Log:              log,
	})
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	env.svc = svc
	return env
}
