package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("event queue closed")
)

// Async decouples request latency from sink latency. Emit enqueues and
// returns; a single worker delivers with exponential backoff.
type Async struct {
	next     Emitter
	queue    chan models.Event
	attempts uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next Emitter, size int, attempts uint64) *Async {
	a := &Async{
		next:     next,
		queue:    make(chan models.Event, size),
		attempts: attempts,
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Emit(ctx context.Context, ev models.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queue to drain or ctx
// to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		a.deliver(ev)
	}
}

func (a *Async) deliver(ev models.Event) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := backoff.Retry(func() error {
		return a.next.Emit(ctx, ev)
	}, backoff.WithContext(backoff.WithMaxRetries(b, a.attempts), ctx))
	if err != nil {
		metrics.EventsEmitted.WithLabelValues(string(ev.Type), "dropped").Inc()
		slog.Error("dropping event after retries", "component", "events", "type", ev.Type, "event_id", ev.ID, "error", err)
	}
}
