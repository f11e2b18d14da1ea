package jwtverify

import (
	"context"
	"net/http"
	"strings"
	"time"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
	commonhttp "github.com/AlibekovAA/social-auth/internal/common/http"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
)

type Claims struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// TokenValidator checks an access token and returns its payload.
type TokenValidator interface {
	ValidateAccessToken(token string) (authdomain.TokenPayload, error)
}

type contextKey string

const claimsKey contextKey = "jwt_claims"

func Middleware(validator TokenValidator, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
				log.WithFields(r.Context(), logger.Fields{"path": r.URL.Path}).Warn("jwt auth failed: missing or invalid authorization header")
				commonhttp.WriteError(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing or invalid authorization")
				return
			}

			payload, err := validator.ValidateAccessToken(strings.TrimPrefix(raw, "Bearer "))
			if err != nil {
				log.WithFields(r.Context(), logger.Fields{"path": r.URL.Path}).Warnf("jwt auth failed: %v", err)
				commonhttp.WriteError(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken, "invalid token")
				return
			}

			ctx := WithClaims(r.Context(), Claims{
				UserID:    payload.Sub,
				JTI:       payload.ID,
				ExpiresAt: payload.ExpiresAt,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}
