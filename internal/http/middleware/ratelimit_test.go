package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func TestRateLimiterRefillsOverTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, 2)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "burst exhausted")

	ok, _ = rl.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(time.Second)
	ok, _ = rl.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
}

func TestRedisRateLimiterSharesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
	a := NewRedisRateLimiter(client, 2, 0)
	b := NewRedisRateLimiter(client, 2, 0)
	a.now = func() time.Time { return now }
	b.now = a.now

	ctx := context.Background()
	ok, err := a.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = b.Allow(ctx, "ip")
	assert.True(t, ok)
	ok, _ = a.Allow(ctx, "ip")
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = b.Allow(ctx, "ip")
	assert.True(t, ok)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, context.DeadlineExceeded
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("denied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RateLimit(denyLimiter{}, logging.Discard())(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	})

	t.Run("limiter failure lets request through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RateLimit(failingLimiter{}, logging.Discard())(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
