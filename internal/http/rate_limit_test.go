package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/james-spears/refactored-computing-machine/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryRateLimiterFixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
	rl := newMemoryRateLimiter(clock.Now)
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		d := rl.Allow("ip:1.2.3.4", 3, time.Minute)
		require.True(t, d.allowed)
		require.Equal(t, i, d.count)
	}
	d := rl.Allow("ip:1.2.3.4", 3, time.Minute)
	require.False(t, d.allowed)
	require.Equal(t, clock.now.Add(time.Minute), d.windowEnd)

	require.True(t, rl.Allow("ip:5.6.7.8", 3, time.Minute).allowed, "keys are independent")

	clock.Advance(time.Minute)
	d = rl.Allow("ip:1.2.3.4", 3, time.Minute)
	require.True(t, d.allowed)
	require.Equal(t, 1, d.count)
}

func TestMemoryRateLimiterCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rl := newMemoryRateLimiter(clock.Now)
	defer rl.Close()

	rl.Allow("a", 1, time.Second)
	rl.Allow("b", 1, time.Hour)
	rl.cleanup(clock.now.Add(2 * time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	require.NotContains(t, rl.entries, "a")
	require.Contains(t, rl.entries, "b")
}

func TestMemoryRateLimiterDisabled(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("k", 0, time.Minute).allowed)
	}
}

func TestMemoryRateLimiterConcurrent(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared", 10, time.Minute).allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, allowed)
}

func newMiniredisLimiter(t *testing.T) (*redisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := newRedisRateLimiter(client, logger.Discard())
	t.Cleanup(rl.Close)
	return rl, mr
}

func TestRedisRateLimiterFixedWindow(t *testing.T) {
	rl, mr := newMiniredisLimiter(t)

	for i := 1; i <= 2; i++ {
		d := rl.Allow("ip:10.0.0.1", 2, 30*time.Minute)
		require.True(t, d.allowed)
		require.Equal(t, i, d.count)
	}
	d := rl.Allow("ip:10.0.0.1", 2, 30*time.Minute)
	require.False(t, d.allowed)
	require.Equal(t, 3, d.count)

	ttl := mr.TTL("relgate:ratelimit:ip:10.0.0.1")
	require.Greater(t, ttl, 29*time.Minute)
	require.LessOrEqual(t, ttl, 30*time.Minute)

	mr.FastForward(31 * time.Minute)
	d = rl.Allow("ip:10.0.0.1", 2, 30*time.Minute)
	require.True(t, d.allowed)
	require.Equal(t, 1, d.count)
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	rl, mr := newMiniredisLimiter(t)
	mr.Close()
	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow("ip:10.0.0.2", 1, time.Minute).allowed)
	}
}

func TestNewRedisRateLimiterPing(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	rl, err := NewRedisRateLimiter(addr, "", 0, logger.Discard())
	require.NoError(t, err)
	rl.Close()

	mr.Close()
	_, err = NewRedisRateLimiter(addr, "", 0, logger.Discard())
	require.Error(t, err)
}

func TestRouterUsesSharedRedisLimiter(t *testing.T) {
	rl, _ := newMiniredisLimiter(t)
	r := newTestRouter(t)
	r.limiter = rl
	r.limits.AuthLimit = 1

	body := map[string]string{"email": "a@x.com", "password": "nope"}
	first := doJSON(t, r, http.MethodPost, "/auth/login", "", body)
	require.Equal(t, http.StatusUnauthorized, first.Code)
	second := doJSON(t, r, http.MethodPost, "/auth/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestRateMetricKey(t *testing.T) {
	require.Equal(t, "ip", rateMetricKey("ip:1.2.3.4"))
	require.Equal(t, "user", rateMetricKey("user:abc"))
	require.Equal(t, "unknown", rateMetricKey(""))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	require.Equal(t, "ip:203.0.113.9", rateLimitKeyIP(req))
}
