// Package eventstest provides an in-memory event sink for service tests.
package eventstest

import (
	"context"

	"github.com/examprep/backend/internal/models"
)

// Recorder keeps every emitted event in memory.
type Recorder struct {
	ch chan models.Event
}

func NewRecorder() *Recorder {
	return &Recorder{ch: make(chan models.Event, 256)}
}

func (r *Recorder) Emit(ctx context.Context, ev models.Event) error {
	r.ch <- ev
	return nil
}

// Drain returns the events recorded so far.
func (r *Recorder) Drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
