package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/middleware"
	"github.com/examprep/backend/internal/models"
)

func TestMemory_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	now = now.Add(time.Minute)
	n, err := m.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Incr(ctx, "a", time.Minute)
	m.Incr(ctx, "a", time.Minute)
	n, _ := m.Incr(ctx, "b", time.Minute)
	assert.Equal(t, int64(1), n)
}

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client), mr
}

func TestRedis_WindowIsFixedFromFirstHit(t *testing.T) {
	r, mr := newRedis(t)
	ctx := context.Background()

	// Hits every 600ms against a 1s window: each window sees at most two.
	var counts []int64
	for i := 0; i < 10; i++ {
		n, err := r.Incr(ctx, "k", time.Second)
		require.NoError(t, err)
		counts = append(counts, n)
		mr.FastForward(600 * time.Millisecond)
	}
	assert.Equal(t, []int64{1, 2, 1, 2, 1, 2, 1, 2, 1, 2}, counts)
}

func TestRedis_LaterHitsKeepExpiry(t *testing.T) {
	r, mr := newRedis(t)
	ctx := context.Background()

	_, err := r.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	n, err := r.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 20*time.Second, mr.TTL("examprep:ratelimit:k"))
}

func TestRedis_KeyWithoutTTLGetsOne(t *testing.T) {
	r, mr := newRedis(t)
	require.NoError(t, mr.Set("examprep:ratelimit:k", "5"))

	n, err := r.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, time.Minute, mr.TTL("examprep:ratelimit:k"))
}

func TestLimiter_WithRedisCounter(t *testing.T) {
	r, mr := newRedis(t)
	h := New(r, 1, time.Minute).Middleware(okHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, send())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	h := New(NewMemory(), 2, time.Minute).Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiter_KeysOnIdentity(t *testing.T) {
	h := New(NewMemory(), 1, time.Minute).Middleware(okHandler())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req = req.WithContext(middleware.WithIdentity(req.Context(), models.Identity{UserID: user, Tier: models.TierFree}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("u1"))
	assert.Equal(t, http.StatusOK, send("u2"))
	assert.Equal(t, http.StatusTooManyRequests, send("u1"))
}

type brokenCounter struct{}

func (brokenCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestLimiter_FailsOpen(t *testing.T) {
	h := New(brokenCounter{}, 1, time.Minute).Middleware(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
