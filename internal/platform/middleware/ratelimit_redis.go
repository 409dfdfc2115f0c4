package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimitConfig configures the shared fixed-window limiter used when
// several server instances sit behind one load balancer.
type RedisRateLimitConfig struct {
	Limit    int
	Window   time.Duration
	Prefix   string
	FailOpen bool
}

// RedisRateLimit counts requests per clientKey in Redis. When Redis errors
// the request is let through if FailOpen is set, otherwise it gets a 503.
func RedisRateLimit(rdb redis.Scripter, cfg RedisRateLimitConfig, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	limitHeader := strconv.Itoa(cfg.Limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)

			count, err := incrWindow(c.Request().Context(), rdb, cfg.Prefix+":"+clientKey(c), cfg.Window)
			if err != nil {
				logger.Warn().Err(err).Msg("redis rate limiter error")
				if cfg.FailOpen {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable")
			}
			if count > int64(cfg.Limit) {
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(cfg.Limit)-count, 10))
			return next(c)
		}
	}
}

func incrWindow(ctx context.Context, rdb redis.Scripter, key string, window time.Duration) (int64, error) {
	res, err := fixedWindowScript.Run(ctx, rdb, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}
