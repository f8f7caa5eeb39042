package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ellavondegurechaff/retaildash/backend/utils"
)

// RateLimiter is a sliding-window limiter keyed by client.
type RateLimiter struct {
	requests *xsync.MapOf[string, []time.Time]
	window   time.Duration
	limit    int
	now      func() time.Time
	done     chan struct{}
	stop     sync.Once
}

// NewRateLimiter creates a new rate limiter. Stop ends its cleanup loop.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: xsync.NewMapOf[string, []time.Time](),
		window:   window,
		limit:    limit,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	// Cleanup old entries every minute
	go rl.cleanup()

	return rl
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	cutoff := now.Add(-rl.window)
	allowed := false

	rl.requests.Compute(key, func(requests []time.Time, _ bool) ([]time.Time, bool) {
		valid := make([]time.Time, 0, len(requests)+1)
		for _, req := range requests {
			if req.After(cutoff) {
				valid = append(valid, req)
			}
		}
		if len(valid) >= rl.limit {
			return valid, false
		}
		allowed = true
		return append(valid, now), false
	})

	return allowed
}

// Sweep drops keys with no request inside the window.
func (rl *RateLimiter) Sweep() {
	cutoff := rl.now().Add(-rl.window)
	rl.requests.Range(func(key string, requests []time.Time) bool {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			rl.requests.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) Len() int {
	return rl.requests.Size()
}

func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// RateLimit middleware limits requests per client IP. The IP comes from
// c.IP, so a forwarding header only counts when the peer is a trusted proxy.
func RateLimit(limiter *RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		if !limiter.Allow(ip) {
			slog.Warn("Rate limit exceeded",
				slog.String("type", "http"),
				slog.String("ip", ip),
				slog.String("path", c.Path()),
				slog.Int("limit", limiter.limit),
				slog.Duration("window", limiter.window))

			return utils.SendError(c, fiber.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Too many requests. Please try again later.", nil)
		}

		return c.Next()
	}
}
