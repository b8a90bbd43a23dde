// Package storetest provides fixtures for service tests run against the
// memory store.
package storetest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

// Conflicting wraps a Store and fails the first n transactions with
// store.ErrStale, as if another writer had won the race.
type Conflicting struct {
	store.Store
	remaining atomic.Int32
	Calls     atomic.Int32
}

func NewConflicting(s store.Store, n int) *Conflicting {
	c := &Conflicting{Store: s}
	c.remaining.Store(int32(n))
	return c
}

func (c *Conflicting) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	c.Calls.Add(1)
	if c.remaining.Add(-1) >= 0 {
		return store.ErrStale
	}
	return c.Store.InTx(ctx, fn)
}

// Seed upserts test definitions.
func Seed(t *testing.T, s store.Store, defs ...models.TestDefinition) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		for i := range defs {
			if err := tx.UpsertTestDefinition(ctx, &defs[i]); err != nil {
				return err
			}
		}
		return nil
	}))
}

// AddUser inserts a user with the given tier and a placeholder email.
func AddUser(t *testing.T, s store.Store, id string, tier models.Tier) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, &models.User{
			ID:        id,
			Email:     id + "@example.test",
			Name:      id,
			Tier:      tier,
			CreatedAt: time.Now().UTC(),
		})
	}))
}

// Test builds an active open test in subject with the given answer key,
// question ids q1..qn.
func Test(id, subject string, passing int, answers ...string) models.TestDefinition {
	qs := make([]models.QuestionRef, len(answers))
	for i, a := range answers {
		qs[i] = models.QuestionRef{
			QuestionID:    "q" + string(rune('1'+i)),
			CorrectAnswer: a,
		}
	}
	return models.TestDefinition{
		ID:              id,
		Title:           id,
		SubjectArea:     subject,
		Questions:       qs,
		TotalQuestions:  len(qs),
		PassingScore:    passing,
		DurationMinutes: 30,
		IsActive:        true,
		PublishedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Clock is a settable time source.
type Clock struct {
	now atomic.Pointer[time.Time]
}

func NewClock(t time.Time) *Clock {
	c := &Clock{}
	c.Set(t)
	return c
}

func (c *Clock) Now() time.Time { return *c.now.Load() }

func (c *Clock) Set(t time.Time) { c.now.Store(&t) }

func (c *Clock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }
