package service

import (
	"github.com/AlibekovAA/social-auth/internal/observability/metrics"
)

func incrementRefreshTokensIssued() {
	metrics.RefreshTokensIssued.Inc()
}

func incrementRefreshTokensUsed() {
	metrics.RefreshTokensUsed.Inc()
}

func addRefreshTokensRevoked(n int64) {
	metrics.RefreshTokensRevoked.Add(float64(n))
}

func incrementRefreshTokensRejected() {
	metrics.RefreshTokensRejected.Inc()
}

func incrementAccessTokensIssued() {
	metrics.AccessTokensIssued.Inc()
}

func observeJWTValidation(err error) {
	metrics.JWTValidationsTotal.Inc()
	if err != nil {
		metrics.JWTValidationsFailed.Inc()
	}
}

func recordRegistration(outcome string) {
	metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func recordLogin(outcome string) {
	metrics.LoginsTotal.WithLabelValues(outcome).Inc()
}
