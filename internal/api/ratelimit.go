package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/observability"
)

// Rate limiter default configuration constants.
const (
	// DefaultClientTTL is how long an idle per-client limiter is kept.
	DefaultClientTTL = 10 * time.Minute

	// MinCleanupInterval is the minimum interval for cleanup operations.
	MinCleanupInterval = 10 * time.Second

	// MaxCleanupInterval is the maximum interval for cleanup operations.
	MaxCleanupInterval = time.Minute
)

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles inbound requests, globally or per client IP.
type RateLimiter struct {
	limiter   *rate.Limiter
	perClient bool
	rps       rate.Limit
	burst     int
	clientTTL time.Duration
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*clientEntry
	stopCh  chan struct{}
	stopped bool
}

// NewRateLimiter creates a token bucket limiter allowing rps requests per
// second with the given burst.
func NewRateLimiter(rps float64, burst int, perClient bool) *RateLimiter {
	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		rps:       rate.Limit(rps),
		burst:     burst,
		clientTTL: DefaultClientTTL,
		now:       time.Now,
		clients:   make(map[string]*clientEntry),
		stopCh:    make(chan struct{}),
	}
}

// NewRateLimiterFromConfig returns nil when rate limiting is disabled.
// Per-client limiters start their cleanup loop; call Stop on shutdown.
func NewRateLimiterFromConfig(cfg *config.RateLimitConfig) *RateLimiter {
	if !cfg.IsEnabled() {
		return nil
	}
	rl := NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.PerClient)
	if cfg.PerClient {
		rl.StartAutoCleanup()
	}
	return rl
}

// Allow reports whether a request from clientIP may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if !rl.perClient {
		return rl.limiter.Allow()
	}

	rl.mu.Lock()
	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientIP] = entry
	}
	entry.lastAccess = rl.now()
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// CleanupOldClients drops limiters idle for longer than maxAge and
// returns how many were removed.
func (rl *RateLimiter) CleanupOldClients(maxAge time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > maxAge {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// StartAutoCleanup periodically removes idle per-client limiters until
// Stop is called.
func (rl *RateLimiter) StartAutoCleanup() {
	rl.mu.Lock()
	if rl.stopped {
		rl.mu.Unlock()
		return
	}
	rl.mu.Unlock()

	interval := min(max(rl.clientTTL/2, MinCleanupInterval), MaxCleanupInterval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.CleanupOldClients(rl.clientTTL)
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		rl.stopped = true
		close(rl.stopCh)
	}
}

// RateLimit rejects requests over the limit with 429.
func RateLimit(rl *RateLimiter, metrics Metrics, logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		route := routeLabel(c)
		metrics.RecordRateLimitHit(route)
		logger.Warn("rate limit exceeded",
			observability.String("client_ip", c.ClientIP()),
			observability.String("route", route),
		)

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too Many Requests",
			"message": "Rate limit exceeded",
		})
	}
}
