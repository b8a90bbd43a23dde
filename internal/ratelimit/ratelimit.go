// Package ratelimit implements fixed-window request limiting backed by an
// in-process map or Redis.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/middleware"
)

// Counter increments the hit count for key within its current window and
// returns the new count.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type entry struct {
	count   int64
	resetAt time.Time
}

// Memory is a Counter for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (m *Memory) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = entry{resetAt: now.Add(window)}
	}
	e.count++
	m.entries[key] = e

	if len(m.entries) > 10000 {
		for k, v := range m.entries {
			if !now.Before(v.resetAt) {
				delete(m.entries, k)
			}
		}
	}
	return e.count, nil
}

// incrScript bumps the counter and starts the window on the first hit only,
// so later hits never push the expiry out. A key left without a TTL gets one.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis shares counters across instances. Windows are fixed: they start at
// a key's first hit and end window later, as with Memory.
type Redis struct {
	client redis.Scripter
	prefix string
}

func NewRedis(client redis.Scripter) *Redis {
	return &Redis{client: client, prefix: "examprep:ratelimit:"}
}

func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return n, nil
}

type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
}

// New returns a Limiter allowing limit requests per window per caller.
// A limit of zero disables limiting.
func New(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: int64(limit), window: window}
}

// Middleware keys on the authenticated user when present, else the client
// address. Counter failures let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		n, err := l.counter.Incr(r.Context(), key, l.window)
		if err != nil {
			slog.Warn("rate limit counter unavailable", "component", "ratelimit", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		remaining := l.limit - n
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if n > l.limit {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if id, ok := middleware.IdentityFrom(r.Context()); ok {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
