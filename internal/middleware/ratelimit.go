package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/response"
)

// RateLimiter is a fixed-window per-IP limiter kept in Redis, so every API
// replica shares one budget.
type RateLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	keyFn  func(ip string) string
	log    zerolog.Logger
}

// NewRateLimiter creates a RateLimiter allowing limit requests per window.
// keyFn maps a client IP to its counter key.
func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, keyFn func(ip string) string, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
		keyFn:  keyFn,
		log:    log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Allow counts one request from ip and reports whether it is within budget,
// along with the time until the window resets.
func (rl *RateLimiter) Allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	key := rl.keyFn(ip)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, rl.window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	return incr.Val() <= rl.limit, ttl.Val(), nil
}

// Middleware returns a Gin middleware that rate-limits requests by IP. When
// Redis is unreachable requests are let through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, reset, err := rl.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			rl.log.Warn().Err(err).Msg("Rate limiter unavailable")
			c.Next()
			return
		}

		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(reset.Seconds())))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
