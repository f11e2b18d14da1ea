package service

import (
	"context"
	"errors"
	"strings"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/social-auth/internal/auth/repository"
	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/social-auth/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
	"github.com/AlibekovAA/social-auth/internal/common/dto"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
	"github.com/AlibekovAA/social-auth/internal/common/mapper"
	"github.com/AlibekovAA/social-auth/internal/common/resilience"
	userdomain "github.com/AlibekovAA/social-auth/internal/user/domain"
	userrepo "github.com/AlibekovAA/social-auth/internal/user/repository"
)

// dummyPassword is hashed once at startup so that logins for unknown emails
// spend the same time in bcrypt as logins with a wrong password.
const dummyPassword = "timing-equalization-placeholder"

type AuthService struct {
	users            userrepo.Repository
	ledger           *RefreshTokenLedger
	issuer           *TokenIssuer
	hasher           commoncrypto.PasswordHasher
	idGenerator      commoncrypto.IDGenerator
	dbCircuitBreaker resilience.CircuitBreakerInterface
	clock            clock.Clock
	log              *logger.Logger
	dummyHash        string
}

type AuthServiceDeps struct {
	Users            userrepo.Repository
	Ledger           *RefreshTokenLedger
	Issuer           *TokenIssuer
	Hasher           commoncrypto.PasswordHasher
	IDGenerator      commoncrypto.IDGenerator
	DBCircuitBreaker resilience.CircuitBreakerInterface
	Clock            clock.Clock
	Log              *logger.Logger
}

func NewAuthService(deps AuthServiceDeps) (*AuthService, error) {
	dummyHash, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:            deps.Users,
		ledger:           deps.Ledger,
		issuer:           deps.Issuer,
		hasher:           deps.Hasher,
		idGenerator:      deps.IDGenerator,
		dbCircuitBreaker: deps.DBCircuitBreaker,
		clock:            deps.Clock,
		log:              deps.Log,
		dummyHash:        dummyHash,
	}, nil
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   *string
	LastName    *string
	DisplayName *string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User   dto.User
	Tokens authdomain.TokenPair
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"username": input.Username,
		"action":   "register_attempt",
	}).Info("register attempt")

	if _, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByEmail(ctx, input.Email)
	}); err == nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "register_email_exists",
		}).Warn("register failed: email already registered")
		recordRegistration("duplicate_email")
		return AuthResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, userrepo.ErrUserNotFound) {
		return AuthResult{}, s.storeFailure(ctx, "register_email_lookup_failed", err)
	}

	if _, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByUsername(ctx, input.Username)
	}); err == nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "register_username_exists",
		}).Warn("register failed: username already taken")
		recordRegistration("duplicate_username")
		return AuthResult{}, ErrDuplicateUsername
	} else if !errors.Is(err, userrepo.ErrUserNotFound) {
		return AuthResult{}, s.storeFailure(ctx, "register_username_lookup_failed", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		return AuthResult{}, newInternalError("hash password", err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return AuthResult{}, newInternalError("generate user id", err)
	}

	displayName := input.DisplayName
	if displayName == nil || strings.TrimSpace(*displayName) == "" {
		username := input.Username
		displayName = &username
	}

	var created userdomain.User
	err = s.callDB(ctx, func(ctx context.Context) error {
		u, err := s.users.Create(ctx, userdomain.User{
			ID:           userdomain.ID(id),
			Email:        input.Email,
			Username:     input.Username,
			PasswordHash: hash,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			DisplayName:  displayName,
		})
		created = u
		return err
	})
	switch {
	case errors.Is(err, userrepo.ErrEmailAlreadyExists):
		recordRegistration("duplicate_email")
		return AuthResult{}, ErrDuplicateEmail
	case errors.Is(err, userrepo.ErrUsernameAlreadyExists):
		recordRegistration("duplicate_username")
		return AuthResult{}, ErrDuplicateUsername
	case err != nil:
		return AuthResult{}, s.storeFailure(ctx, "register_create_failed", err)
	}

	tokens, err := s.issueSession(ctx, string(created.ID))
	if err != nil {
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"username": created.Username,
		"user_id":  string(created.ID),
		"action":   "register_success",
	}).Info("register success")
	recordRegistration("success")

	return AuthResult{User: mapper.UserToDTO(created), Tokens: tokens}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"action": "login_attempt",
	}).Info("login attempt")

	user, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByEmail(ctx, input.Email)
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			s.hasher.Verify(input.Password, s.dummyHash)
			s.log.WithFields(ctx, logger.Fields{
				"action": "login_invalid_credentials",
			}).Warn("login failed: invalid credentials")
			recordLogin("invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, s.storeFailure(ctx, "login_fetch_failed", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.log.WithFields(ctx, logger.Fields{
			"action": "login_invalid_credentials",
		}).Warn("login failed: invalid credentials")
		recordLogin("invalid_credentials")
		return AuthResult{}, ErrInvalidCredentials
	}

	tokens, err := s.issueSession(ctx, string(user.ID))
	if err != nil {
		return AuthResult{}, err
	}

	now := s.clock.Now()
	err = s.callDB(ctx, func(ctx context.Context) error {
		return s.users.UpdateLastActive(ctx, user.ID, now)
	})
	if err != nil {
		return AuthResult{}, s.storeFailure(ctx, "login_update_last_active_failed", err)
	}
	user.LastActiveAt = &now
	user.UpdatedAt = now

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("login success")
	recordLogin("success")

	return AuthResult{User: mapper.UserToDTO(user), Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed; presenting it again fails with ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (authdomain.TokenPair, error) {
	payload, err := s.issuer.VerifyRefresh(rawRefreshToken)
	observeJWTValidation(err)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_invalid",
		}).Warnf("refresh failed: %v", err)
		return authdomain.TokenPair{}, err
	}

	pair, err := s.ledger.Rotate(ctx, rawRefreshToken, payload.Sub, func() (authdomain.TokenPair, error) {
		return s.issuer.IssuePair(payload.Sub)
	})
	if err != nil {
		if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": payload.Sub,
				"action":  "refresh_token_not_active",
			}).Warn("refresh failed: token revoked, expired or unknown")
			incrementRefreshTokensRejected()
			return authdomain.TokenPair{}, ErrInvalidToken
		}
		return authdomain.TokenPair{}, s.storeFailure(ctx, "refresh_rotate_failed", err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": payload.Sub,
		"action":  "refresh_token_success",
	}).Info("refresh token rotated")

	return pair, nil
}

// Logout revokes the presented refresh token on a best-effort basis and
// never fails.
func (s *AuthService) Logout(ctx context.Context, userID, rawRefreshToken string) {
	if rawRefreshToken == "" {
		return
	}
	ok := s.ledger.RevokeByRawToken(ctx, rawRefreshToken)
	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"revoked": ok,
		"action":  "logout",
	}).Info("logout")
}

func (s *AuthService) ValidateAccessToken(token string) (authdomain.TokenPayload, error) {
	payload, err := s.issuer.VerifyAccess(token)
	observeJWTValidation(err)
	return payload, err
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (dto.User, error) {
	if !commoncrypto.IsValidID(userID) {
		return dto.User{}, ErrInvalidToken
	}

	user, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByID(ctx, userdomain.ID(userID))
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return dto.User{}, ErrInvalidToken
		}
		return dto.User{}, s.storeFailure(ctx, "current_user_fetch_failed", err)
	}
	return mapper.UserToDTO(user), nil
}

func (s *AuthService) issueSession(ctx context.Context, userID string) (authdomain.TokenPair, error) {
	tokens, err := s.issuer.IssuePair(userID)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "token_issue_failed",
		}).Errorf("failed to issue tokens: %v", err)
		return authdomain.TokenPair{}, newInternalError("issue tokens", err)
	}

	if _, err := s.ledger.Save(ctx, tokens.RefreshToken, userID); err != nil {
		return authdomain.TokenPair{}, s.storeFailure(ctx, "refresh_token_save_failed", err)
	}
	return tokens, nil
}

func (s *AuthService) findUser(ctx context.Context, find func(context.Context) (userdomain.User, error)) (userdomain.User, error) {
	var user userdomain.User
	err := s.callDB(ctx, func(ctx context.Context) error {
		u, err := find(ctx)
		user = u
		return err
	})
	return user, err
}

func (s *AuthService) callDB(ctx context.Context, fn func(context.Context) error) error {
	if s.dbCircuitBreaker == nil {
		return fn(ctx)
	}
	return s.dbCircuitBreaker.Call(ctx, fn)
}

// storeFailure keeps domain errors as they are and wraps anything else as
// an internal error.
func (s *AuthService) storeFailure(ctx context.Context, action string, err error) error {
	err = handleCircuitBreakerError(err)
	if _, ok := commonerrors.AsDomainError(err); ok {
		return err
	}
	s.log.WithFields(ctx, logger.Fields{
		"action": action,
	}).Errorf("store operation failed: %v", err)
	return newInternalError(action, err)
}

func isExpectedUserStoreOutcome(err error) bool {
	return errors.Is(err, userrepo.ErrUserNotFound) ||
		errors.Is(err, userrepo.ErrEmailAlreadyExists) ||
		errors.Is(err, userrepo.ErrUsernameAlreadyExists)
}
