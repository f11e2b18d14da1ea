package constants

import "time"

const (
	UsernameMinLength    = 3
	UsernameMaxLength    = 30
	PasswordMinLength    = 8
	PasswordMaxLength    = 72
	NameMaxLength        = 50
	DisplayNameMaxLength = 100
	JWTSecretMinLength   = 32

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second
	ServerMaxHeaderBytes    = 16 << 10

	ShutdownTimeout = 30 * time.Second

	DefaultCircuitBreakerThreshold = 50
	DefaultCircuitBreakerTimeout   = 5 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultAuthRequestTimeout = 5 * time.Second

	RefreshCookieName        = "refresh_token"
	DefaultRefreshCookiePath = "/api/auth"

	RateLimitCleanupInterval           = 5 * time.Minute
	RateLimitLoginRequestsPerSecond    = 1
	RateLimitLoginBurst                = 5
	RateLimitRegisterRequestsPerSecond = 0.5
	RateLimitRegisterBurst             = 3
	RateLimitRefreshRequestsPerSecond  = 2
	RateLimitRefreshBurst              = 10
	RateLimitLogoutRequestsPerSecond   = 2
	RateLimitLogoutBurst               = 10
	RateLimitGeneralRequestsPerSecond  = 10
	RateLimitGeneralBurst              = 20

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
