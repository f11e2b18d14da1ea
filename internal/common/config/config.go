package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/AlibekovAA/social-auth/internal/common/constants"
	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
	"github.com/AlibekovAA/social-auth/internal/common/lifetime"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EnvProduction = "production"
)

type AuthConfig struct {
	Env              string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTPPort         string        `yaml:"http_port" env:"AUTH_HTTP_PORT" env-default:"8081"`
	StoreDriver      string        `yaml:"store_driver" env:"AUTH_STORE_DRIVER" env-default:"postgres"`
	DatabaseURL      string        `yaml:"database_url" env:"DATABASE_URL"`
	RunMigrations    bool          `yaml:"run_migrations" env:"AUTH_RUN_MIGRATIONS" env-default:"true"`
	JWTSecret        string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	JWTRefreshSecret string        `yaml:"jwt_refresh_secret" env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessLifetime   string        `yaml:"access_lifetime" env:"JWT_ACCESS_EXPIRATION" env-default:"15m"`
	RefreshLifetime  string        `yaml:"refresh_lifetime" env:"JWT_REFRESH_EXPIRATION" env-default:"7d"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"AUTH_REQUEST_TIMEOUT" env-default:"5s"`
	BcryptCost       int           `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"12"`
	CookiePath       string        `yaml:"cookie_path" env:"AUTH_COOKIE_PATH" env-default:"/api/auth"`
	LogDir           string        `yaml:"log_dir" env:"LOG_DIR"`
	LogLevel         string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`

	// Filled from AccessLifetime and RefreshLifetime.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c AuthConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// LoadAuthConfig reads the environment. When AUTH_CONFIG_PATH names a YAML
// file it is read first and the environment overrides it.
func LoadAuthConfig() (AuthConfig, error) {
	var cfg AuthConfig

	var err error
	if path := os.Getenv("AUTH_CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return AuthConfig{}, fmt.Errorf("failed to read auth config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

func (c *AuthConfig) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL", commonerrors.ErrMissingRequiredEnv)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown AUTH_STORE_DRIVER %q", c.StoreDriver)
	}

	if err := validateJWTSecrets(c.JWTSecret, c.JWTRefreshSecret); err != nil {
		return err
	}

	var err error
	if c.AccessTTL, err = lifetime.Parse(c.AccessLifetime); err != nil {
		return fmt.Errorf("JWT_ACCESS_EXPIRATION: %w", err)
	}
	if c.RefreshTTL, err = lifetime.Parse(c.RefreshLifetime); err != nil {
		return fmt.Errorf("JWT_REFRESH_EXPIRATION: %w", err)
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = constants.DefaultAuthRequestTimeout
	}
	if c.CookiePath == "" {
		c.CookiePath = constants.DefaultRefreshCookiePath
	}
	return nil
}

func validateJWTSecrets(access, refresh string) error {
	if len(access) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: JWT_SECRET has %d bytes", commonerrors.ErrInvalidJWTSecret, len(access))
	}
	if len(refresh) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: JWT_REFRESH_SECRET has %d bytes", commonerrors.ErrInvalidJWTSecret, len(refresh))
	}
	if access == refresh {
		return fmt.Errorf("%w: JWT_SECRET and JWT_REFRESH_SECRET are equal", commonerrors.ErrInvalidJWTSecret)
	}
	return nil
}
