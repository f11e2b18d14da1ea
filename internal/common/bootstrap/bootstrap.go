package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	authrepo "github.com/AlibekovAA/social-auth/internal/auth/repository"
	"github.com/AlibekovAA/social-auth/internal/common/clock"
	"github.com/AlibekovAA/social-auth/internal/common/config"
	"github.com/AlibekovAA/social-auth/internal/common/constants"
	"github.com/AlibekovAA/social-auth/internal/common/db"
	commonhttp "github.com/AlibekovAA/social-auth/internal/common/http"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
	userrepo "github.com/AlibekovAA/social-auth/internal/user/repository"
)

type AuthApp struct {
	Log              *logger.Logger
	Config           config.AuthConfig
	Clock            clock.Clock
	Pool             *pgxpool.Pool
	UserRepo         userrepo.Repository
	RefreshTokenRepo authrepo.RefreshTokenRepository

	stopMetrics context.CancelFunc
}

func NewAuthApp(ctx context.Context) (*AuthApp, error) {
	cfg, err := config.LoadAuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogDir, "auth", cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &AuthApp{
		Log:    log,
		Config: cfg,
		Clock:  clock.NewRealClock(),
	}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory stores, data is lost on restart")
		app.UserRepo = userrepo.NewMemoryRepository(app.Clock)
		app.RefreshTokenRepo = authrepo.NewMemoryRefreshTokenRepository()
	default:
		if err := app.initPostgres(ctx); err != nil {
			_ = log.Close()
			return nil, err
		}
	}

	return app, nil
}

func (a *AuthApp) initPostgres(ctx context.Context) error {
	pool, err := db.NewPool(ctx, a.Log, a.Config.DatabaseURL)
	if err != nil {
		return err
	}

	if a.Config.RunMigrations {
		if err := db.Migrate(ctx, a.Log, pool); err != nil {
			pool.Close()
			return err
		}
	}

	metricsCtx, stop := context.WithCancel(context.Background())
	db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)

	a.Pool = pool
	a.stopMetrics = stop
	a.UserRepo = userrepo.NewPgRepository(pool, a.Log)
	a.RefreshTokenRepo = authrepo.NewPgRefreshTokenRepository(pool)
	return nil
}

// Pinger returns the store health check, or nil for memory stores.
func (a *AuthApp) Pinger() commonhttp.Pinger {
	if a.Pool == nil {
		return nil
	}
	return a.Pool
}

func (a *AuthApp) Close() error {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return a.Log.Close()
}
