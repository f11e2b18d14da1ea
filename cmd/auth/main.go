package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhttp "github.com/AlibekovAA/social-auth/internal/auth/http"
	"github.com/AlibekovAA/social-auth/internal/auth/service"
	"github.com/AlibekovAA/social-auth/internal/common/bootstrap"
	"github.com/AlibekovAA/social-auth/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/social-auth/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/social-auth/internal/common/http"
	"github.com/AlibekovAA/social-auth/internal/common/resilience"
	srv "github.com/AlibekovAA/social-auth/internal/common/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auth service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewAuthApp(ctx)
	if err != nil {
		return err
	}
	log := app.Log
	cfg := app.Config

	dbCircuitBreaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  constants.DefaultCircuitBreakerThreshold,
		Timeout:    constants.DefaultCircuitBreakerTimeout,
		ResetAfter: constants.DefaultCircuitBreakerReset,
		Name:       "database",
		Logger:     log,
		Clock:      app.Clock,
		Ignore:     service.IsExpectedStoreOutcome,
	})

	idGenerator := commoncrypto.NewUUIDGenerator()
	issuer := service.NewTokenIssuer(service.TokenIssuerConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, idGenerator, app.Clock)
	ledger := service.NewRefreshTokenLedger(
		app.RefreshTokenRepo,
		dbCircuitBreaker,
		idGenerator,
		cfg.RefreshTTL,
		app.Clock,
		log,
	)

	authService, err := service.NewAuthService(service.AuthServiceDeps{
		Users:            app.UserRepo,
		Ledger:           ledger,
		Issuer:           issuer,
		Hasher:           commoncrypto.NewBcryptHasher(cfg.BcryptCost),
		IDGenerator:      idGenerator,
		DBCircuitBreaker: dbCircuitBreaker,
		Clock:            app.Clock,
		Log:              log,
	})
	if err != nil {
		_ = app.Close()
		return fmt.Errorf("failed to build auth service: %w", err)
	}

	rateLimiter := commonhttp.NewStrictRateLimiter()
	handler := authhttp.NewHandler(authService, authhttp.Config{
		CookiePath:     cfg.CookiePath,
		CookieSecure:   cfg.IsProduction(),
		RefreshTTL:     cfg.RefreshTTL,
		RequestTimeout: cfg.RequestTimeout,
		Pinger:         app.Pinger(),
		RateLimiter:    rateLimiter,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	serverConfig.Log = log
	server := srv.NewServer(serverConfig, commonhttp.BuildBaseHandler(log, mux, commonhttp.BaseOptions{
		HSTS: cfg.IsProduction(),
	}))

	return srv.Run(ctx, server, log, "auth",
		func(context.Context) error {
			rateLimiter.Stop()
			return nil
		},
		func(context.Context) error {
			return app.Close()
		},
	)
}
