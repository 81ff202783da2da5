package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/castscheduler/internal/config"
	"github.com/iliyamo/castscheduler/internal/logging"
)

// tokenBucket refills whole intervals only, so a burst can never exceed
// capacity.  Returns {allowed, remaining, wait_ms}.
var tokenBucket = redis.NewScript(`
local now, capacity = tonumber(ARGV[1]), tonumber(ARGV[2])
local refill, every, ttl = tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(st[1]), tonumber(st[2])
if not tokens or not ts then
  tokens, ts = capacity, now
end

local steps = math.floor(math.max(0, now - ts) / every)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  ts = ts + steps * every
end

local allowed, wait = 0, 0
if tokens > 0 then
  allowed, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - ts))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

type bucketState struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

func take(ctx context.Context, rdb redis.UniversalClient, cfg config.RateLimitConfig, key string, now time.Time) (bucketState, error) {
	every := cfg.RefillInterval
	if every <= 0 {
		every = time.Second
	}
	res, err := tokenBucket.Run(ctx, rdb, []string{key},
		now.UnixMilli(), cfg.Capacity, cfg.RefillTokens, every.Milliseconds(), int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketState{}, err
	}
	if len(res) != 3 {
		return bucketState{}, fmt.Errorf("token bucket: unexpected reply %v", res)
	}
	return bucketState{
		allowed:   res[0] == 1,
		remaining: res[1],
		wait:      time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests with a token bucket kept in Redis, so every
// replica shares one budget per key.  Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.UniversalClient, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			st, err := take(c.Request().Context(), rdb, cfg, key, time.Now())
			if err != nil {
				if cfg.Debug {
					log.Warn("rate limit unavailable", "key", key, "err", err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if st.allowed {
				return next(c)
			}

			secs := int((st.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Info("rate limited", "key", key, "retry_after", secs)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate_limited",
				"message":     "too many requests",
				"retry_after": secs,
			})
		}
	}
}

// rateKey joins the parts named by the strategy, e.g. "ip_route" keys by
// client IP and route.  An unknown strategy keys by all three.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	add := func(part string) {
		switch part {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", currentUserID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	before := len(parts)
	for _, p := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		add(p)
	}
	if len(parts) == before {
		add("ip")
		add("user")
		add("route")
	}
	return strings.Join(parts, ":")
}
