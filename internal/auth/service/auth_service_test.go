package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
	userdomain "github.com/AlibekovAA/social-auth/internal/user/domain"
	userrepo "github.com/AlibekovAA/social-auth/internal/user/repository"
)

func registerAlice(t *testing.T, env *testEnv) AuthResult {
	t.Helper()
	result, err := env.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return result
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	ctx := context.Background()

	reg := registerAlice(t, env)
	if reg.User.Username != "alice" || reg.User.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", reg.User)
	}
	if reg.User.DisplayName == nil || *reg.User.DisplayName != "alice" {
		t.Errorf("displayName should default to username, got %v", reg.User.DisplayName)
	}
	if reg.Tokens.AccessToken == "" || reg.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if _, err := env.ledger.FindActive(ctx, reg.Tokens.RefreshToken, reg.User.ID); err != nil {
		t.Errorf("register must persist the refresh token: %v", err)
	}

	stored, _ := env.memUsers.FindByID(ctx, userdomain.ID(reg.User.ID))
	if stored.PasswordHash == "" || stored.PasswordHash == "password123" {
		t.Error("password must be stored hashed")
	}

	env.clock.Advance(time.Minute)
	login, err := env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("login returned user %q, want %q", login.User.ID, reg.User.ID)
	}
	if login.User.LastActiveAt == nil || !login.User.LastActiveAt.Equal(env.clock.Now()) {
		t.Errorf("LastActiveAt = %v, want %v", login.User.LastActiveAt, env.clock.Now())
	}
	stored, _ = env.memUsers.FindByID(ctx, userdomain.ID(reg.User.ID))
	if stored.LastActiveAt == nil {
		t.Error("lastActiveAt must be persisted")
	}

	payload, err := env.svc.ValidateAccessToken(login.Tokens.AccessToken)
	if err != nil || payload.Sub != reg.User.ID {
		t.Errorf("ValidateAccessToken() = %+v, %v", payload, err)
	}
}

func TestAuthService_RegisterKeepsExplicitDisplayName(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	display := "Alice A."
	first := "Alice"

	result, err := env.svc.Register(context.Background(), RegisterInput{
		Username:    "alice",
		Email:       "alice@example.com",
		Password:    "password123",
		FirstName:   &first,
		DisplayName: &display,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if *result.User.DisplayName != display || *result.User.FirstName != first {
		t.Errorf("profile fields not kept: %+v", result.User)
	}
}

func TestAuthService_RegisterDuplicates(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	ctx := context.Background()
	registerAlice(t, env)

	_, err := env.svc.Register(ctx, RegisterInput{Username: "other", Email: "alice@example.com", Password: "password123"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate email error = %v", err)
	}

	_, err = env.svc.Register(ctx, RegisterInput{Username: "alice", Email: "new@example.com", Password: "password123"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("duplicate username error = %v", err)
	}

	// email is checked before username
	_, err = env.svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("both duplicate error = %v, want ErrDuplicateEmail", err)
	}

	if _, err := env.memUsers.FindByUsername(ctx, "other"); !errors.Is(err, userrepo.ErrUserNotFound) {
		t.Error("no user may be created when a uniqueness check fails")
	}
	if n := len(env.memTokens.All()); n != 1 {
		t.Errorf("ledger has %d records, want 1", n)
	}
}

func TestAuthService_RegisterStoreConstraintBackstop(t *testing.T) {
	users := &mockUserRepo{
		createFunc: func(ctx context.Context, user userdomain.User) (userdomain.User, error) {
			return userdomain.User{}, userrepo.ErrUsernameAlreadyExists
		},
	}
	env := setupAuthService(t, users, nil)

	_, err := env.svc.Register(context.Background(), RegisterInput{Username: "racer", Email: "r@example.com", Password: "password123"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("error = %v, want ErrDuplicateUsername", err)
	}
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	ctx := context.Background()
	registerAlice(t, env)

	_, unknownErr := env.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
	_, wrongErr := env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("errors = %v / %v, want ErrInvalidCredentials", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("messages differ: %q vs %q", unknownErr.Error(), wrongErr.Error())
	}
	a, _ := commonerrors.AsDomainError(unknownErr)
	b, _ := commonerrors.AsDomainError(wrongErr)
	if a.Code() != b.Code() || a.HTTPStatus() != b.HTTPStatus() {
		t.Errorf("codes differ: %s/%d vs %s/%d", a.Code(), a.HTTPStatus(), b.Code(), b.HTTPStatus())
	}
}

func TestAuthService_RefreshRotation(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	ctx := context.Background()
	reg := registerAlice(t, env)

	r1 := reg.Tokens.RefreshToken
	second, err := env.svc.Refresh(ctx, r1)
	if err != nil {
		t.Fatalf("Refresh(r1) error = %v", err)
	}
	r2 := second.RefreshToken
	if r2 == r1 {
		t.Fatal("rotation must issue a new refresh token")
	}

	if _, err := env.svc.Refresh(ctx, r1); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("replayed token error = %v, want ErrInvalidToken", err)
	}

	third, err := env.svc.Refresh(ctx, r2)
	if err != nil {
		t.Fatalf("Refresh(r2) error = %v", err)
	}
	if third.AccessToken == "" {
		t.Error("expected access token")
	}

	// old access tokens stay valid until they expire
	if _, err := env.svc.ValidateAccessToken(reg.Tokens.AccessToken); err != nil {
		t.Errorf("original access token should remain valid: %v", err)
	}
}

func TestAuthService_LogoutThenRefreshFails(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	ctx := context.Background()
	reg := registerAlice(t, env)

	env.svc.Logout(ctx, reg.User.ID, reg.Tokens.RefreshToken)

	if _, err := env.svc.Refresh(ctx, reg.Tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh after logout error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthService_LogoutIgnoresStoreFailure(t *testing.T) {
	tokens := &mockRefreshTokenRepo{
		revokeByTokenHashFunc: func(ctx context.Context, hash string) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	env := setupAuthService(t, nil, tokens)

	env.svc.Logout(context.Background(), "user-1", "some-token")
	env.svc.Logout(context.Background(), "user-1", "")
}

func TestAuthService_RefreshRejectsAccessToken(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	reg := registerAlice(t, env)

	if _, err := env.svc.Refresh(context.Background(), reg.Tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
	if _, err := env.svc.ValidateAccessToken(reg.Tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
}

func TestAuthService_RefreshExpired(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	reg := registerAlice(t, env)

	env.clock.Advance(testRefreshTTL + time.Second)
	if _, err := env.svc.Refresh(context.Background(), reg.Tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

// A token whose signature still verifies but whose ledger record is gone
// must be rejected.
func TestAuthService_RefreshRequiresLedgerRecord(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	pair, err := env.issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	if _, err := env.svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthService_ConcurrentRefreshHasOneWinner(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	reg := registerAlice(t, env)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.svc.Refresh(context.Background(), reg.Tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrInvalidToken) {
				failures++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 || failures != workers-1 {
		t.Errorf("successes=%d failures=%d, want 1 and %d", successes, failures, workers-1)
	}
}

func TestAuthService_StoreFailureIsInternal(t *testing.T) {
	errDB := errors.New("connection refused")
	users := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (userdomain.User, error) {
			return userdomain.User{}, errDB
		},
	}
	env := setupAuthService(t, users, nil)

	_, err := env.svc.Register(context.Background(), RegisterInput{Username: "bob", Email: "bob@example.com", Password: "password123"})
	if !errors.Is(err, errDB) {
		t.Errorf("cause should be preserved, got %v", err)
	}
	de, ok := commonerrors.AsDomainError(err)
	if !ok || de.HTTPStatus() != 500 || de.Code() != "INTERNAL_ERROR" || de.Message() != "internal server error" {
		t.Errorf("expected internal domain error, got %v", err)
	}
	if !errors.Is(err, commonerrors.ErrInternalError) {
		t.Errorf("store failure should match ErrInternalError, got %v", err)
	}

	_, err = env.svc.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "password123"})
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("store failure must not look like bad credentials")
	}
}

func TestAuthService_CircuitOpenIsUnavailable(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	env.breaker.callFunc = func(ctx context.Context, fn func(context.Context) error) error {
		return commonerrors.ErrCircuitOpen
	}

	_, err := env.svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "password123"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("error = %v, want ErrServiceUnavailable", err)
	}
}

func TestAuthService_CurrentUser(t *testing.T) {
	env := setupAuthService(t, nil, nil)
	reg := registerAlice(t, env)

	user, err := env.svc.CurrentUser(context.Background(), reg.User.ID)
	if err != nil || user.Username != "alice" {
		t.Fatalf("CurrentUser() = %+v, %v", user, err)
	}

	if _, err := env.svc.CurrentUser(context.Background(), "missing"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown user error = %v, want ErrInvalidToken", err)
	}
}
