package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiterStore holds per-IP rate limiters with periodic cleanup.
type ipLimiterStore struct {
	limiters sync.Map // map[string]*ipLimiterEntry
	rps      float64
	burst    int
}

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// IPRateLimitMiddleware enforces a token bucket per client IP on the token routes.
//
// This sits in front of the per-provider gate and only protects the process from a
// single noisy address; provider quotas are enforced by the gate itself. Stale
// limiters are removed until ctx is cancelled.
//
// Returns 429 Too Many Requests with a Retry-After header when the bucket is empty.
func IPRateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &ipLimiterStore{
		rps:   rps,
		burst: burst,
	}

	go store.cleanupStale(ctx, 5*time.Minute)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := store.getLimiter(clientIP)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Seconds())
			reservation.Cancel()

			logger.Debug("ip rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many token requests from this IP. Please retry after the specified delay.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (s *ipLimiterStore) getLimiter(ip string) *rate.Limiter {
	if val, ok := s.limiters.Load(ip); ok {
		entry := val.(*ipLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = time.Now()
		entry.mu.Unlock()
		return entry.limiter
	}

	entry := &ipLimiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: time.Now(),
	}
	actual, _ := s.limiters.LoadOrStore(ip, entry)
	return actual.(*ipLimiterEntry).limiter
}

// cleanupStale drops limiters not used in the last hour.
func (s *ipLimiterStore) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictBefore(time.Now().Add(-1 * time.Hour))
		}
	}
}

func (s *ipLimiterStore) evictBefore(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*ipLimiterEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()

		if stale {
			s.limiters.Delete(key)
		}
		return true
	})
}
