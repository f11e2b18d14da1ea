package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AlibekovAA/social-auth/internal/common/constants"
	"github.com/AlibekovAA/social-auth/internal/observability/metrics"
)

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	stop     chan struct{}
	once     sync.Once
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	go rl.evictIdle(constants.RateLimitCleanupInterval)
	return rl
}

func (rl *RateLimiter) evictIdle(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, l := range rl.limiters {
				// full bucket: no requests for a while
				if l.Tokens() >= float64(rl.burst) {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Reserve takes a token for key. When none is available it returns false and
// how long the client should wait.
func (rl *RateLimiter) Reserve(key string) (bool, time.Duration) {
	rl.mu.Lock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	rl.mu.Unlock()

	now := time.Now()
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.Reserve(key)
	return ok
}

type limitRule struct {
	name  string
	rps   float64
	burst int
}

var (
	pathLimitRules = map[string]limitRule{
		"/api/auth/login":    {"login", constants.RateLimitLoginRequestsPerSecond, constants.RateLimitLoginBurst},
		"/api/auth/register": {"register", constants.RateLimitRegisterRequestsPerSecond, constants.RateLimitRegisterBurst},
		"/api/auth/refresh":  {"refresh", constants.RateLimitRefreshRequestsPerSecond, constants.RateLimitRefreshBurst},
		"/api/auth/logout":   {"logout", constants.RateLimitLogoutRequestsPerSecond, constants.RateLimitLogoutBurst},
	}
	generalLimitRule = limitRule{"general", constants.RateLimitGeneralRequestsPerSecond, constants.RateLimitGeneralBurst}
)

// StrictRateLimiter applies a tighter budget to the credential endpoints
// and a shared general budget to everything else.
type StrictRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

func NewStrictRateLimiter() *StrictRateLimiter {
	return &StrictRateLimiter{limiters: make(map[string]*RateLimiter)}
}

func (srl *StrictRateLimiter) Stop() {
	srl.mu.Lock()
	defer srl.mu.Unlock()
	for _, l := range srl.limiters {
		l.Stop()
	}
}

func (srl *StrictRateLimiter) limiterFor(path string) (*RateLimiter, string) {
	rule, ok := pathLimitRules[path]
	if !ok {
		rule = generalLimitRule
	}

	srl.mu.Lock()
	defer srl.mu.Unlock()
	l, ok := srl.limiters[rule.name]
	if !ok {
		l = NewRateLimiter(rule.rps, rule.burst)
		srl.limiters[rule.name] = l
	}
	return l, rule.name
}

func (srl *StrictRateLimiter) MiddlewareForPath(path string) func(http.Handler) http.Handler {
	limiter, limiterType := srl.limiterFor(path)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, wait := limiter.Reserve(GetClientIP(r)); !ok {
				metrics.RateLimitBlocked.WithLabelValues(path, limiterType).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
