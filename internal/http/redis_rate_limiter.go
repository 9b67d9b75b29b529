package httpx

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and starts the window on the first hit.
// KEYS[1] = key
// ARGV[1] = window in milliseconds
// Returns {count, remaining ttl in ms}.
var fixedWindowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {current, ttl}
`)

type redisRateLimiter struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisRateLimiter constructs a Redis backed rate limiter shared across API processes.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisRateLimiter(client, logger), nil
}

func newRedisRateLimiter(client redis.UniversalClient, logger *slog.Logger) *redisRateLimiter {
	return &redisRateLimiter{
		client:  client,
		logger:  logger,
		prefix:  "relgate:ratelimit:",
		timeout: 250 * time.Millisecond,
		now:     time.Now,
	}
}

// Allow fails open when Redis is unreachable.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	res, err := fixedWindowScript.Run(ctx, rl.client, []string{rl.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		rl.logRedisError("eval", err)
		return rateDecision{allowed: true}
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl <= 0 {
		ttl = window
	}
	return rateDecision{
		allowed:   count <= limit,
		count:     count,
		windowEnd: rl.now().Add(ttl),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisRateLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
