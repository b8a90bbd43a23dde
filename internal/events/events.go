// Package events delivers outbound domain events after the owning
// transaction commits. Delivery is at-least-once; every envelope carries a
// unique id consumers can dedupe on.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
)

type Emitter interface {
	Emit(ctx context.Context, ev models.Event) error
}

// New wraps a payload in an envelope with a fresh id.
func New(typ models.EventType, payload any, at time.Time) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
}

// Publish emits ev and reports whether it was delivered. Failures are
// logged and counted, never returned: state has already been committed.
func Publish(ctx context.Context, e Emitter, ev models.Event) bool {
	if err := e.Emit(ctx, ev); err != nil {
		metrics.EventsEmitted.WithLabelValues(string(ev.Type), "error").Inc()
		slog.Warn("event delivery failed", "component", "events", "type", ev.Type, "event_id", ev.ID, "error", err)
		return false
	}
	metrics.EventsEmitted.WithLabelValues(string(ev.Type), "ok").Inc()
	return true
}

// Log writes events to the structured log. It is the fallback sink when
// no broker or webhook is configured.
type Log struct{}

func (Log) Emit(ctx context.Context, ev models.Event) error {
	slog.InfoContext(ctx, "event", "component", "events", "type", ev.Type, "event_id", ev.ID, "payload", ev.Payload)
	return nil
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
