package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

// Opener returns an empty store for one scenario.
type Opener func(t *testing.T) store.Store

// RunConformance exercises the uniqueness and compare-and-swap guarantees
// every store.Store implementation must give the services. Ids are UUIDs
// so SQL backends with typed keys accept them.
func RunConformance(t *testing.T, open Opener) {
	scenarios := []struct {
		name string
		run  func(t *testing.T, s store.Store)
	}{
		{"OneActiveAttemptPerUserAndTest", oneActiveAttempt},
		{"OneDailyAttemptPerDay", oneDailyAttempt},
		{"CompleteAttemptIsOneShot", completeAttemptOnce},
		{"FirstCompletedAttemptSince", firstCompletedSince},
		{"SubjectProgressVersionCheck", progressVersion},
		{"ProgressAppliedOnce", progressAppliedOnce},
		{"EngagementVersionCheck", engagementVersion},
		{"AssignmentLifecycle", assignmentLifecycle},
		{"OneEvaluationPerAttempt", oneEvaluation},
		{"UserEmailIsUnique", uniqueEmail},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			s := open(t)
			Seed(t, s, Test("alpha", "math", 50, "A", "B"), Test("beta", "science", 50, "C"))
			sc.run(t, s)
		})
	}
}

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func inTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) error {
	t.Helper()
	ctx := context.Background()
	return s.InTx(ctx, func(tx store.Tx) error { return fn(ctx, tx) })
}

func newUser(t *testing.T, s store.Store) string {
	t.Helper()
	id := uuid.NewString()
	AddUser(t, s, id, models.TierFree)
	return id
}

func attempt(userID, testID string, daily bool, at time.Time) *models.Attempt {
	a := &models.Attempt{
		ID:              uuid.NewString(),
		UserID:          userID,
		TestID:          testID,
		SubjectArea:     "math",
		Status:          models.AttemptInProgress,
		IsDaily:         daily,
		StartedAt:       at,
		TotalQuestions:  2,
		RecordedAnswers: map[string]string{},
	}
	if daily {
		day := store.Day(at)
		a.DailyDate = &day
	}
	return a
}

func insert(t *testing.T, s store.Store, a *models.Attempt) error {
	t.Helper()
	return inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertAttempt(ctx, a) })
}

func complete(t *testing.T, s store.Store, attemptID string, at time.Time) error {
	t.Helper()
	return inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.CompleteAttempt(ctx, models.AttemptCompletion{
			AttemptID:        attemptID,
			CompletedAt:      at,
			CorrectAnswers:   1,
			Score:            1,
			ScorePercentage:  50,
			Passed:           true,
			TimeTakenSeconds: 30,
			RecordedAnswers:  map[string]string{"q1": "A", "q2": "X"},
			QuestionResults:  []models.QuestionResult{{QuestionID: "q1", IsCorrect: true}, {QuestionID: "q2"}},
		})
	})
}

func oneActiveAttempt(t *testing.T, s store.Store) {
	alice, bob := newUser(t, s), newUser(t, s)

	first := attempt(alice, "alpha", false, base)
	require.NoError(t, insert(t, s, first))
	assert.ErrorIs(t, insert(t, s, attempt(alice, "alpha", false, base)), store.ErrDuplicate)
	assert.NoError(t, insert(t, s, attempt(alice, "beta", false, base)))
	assert.NoError(t, insert(t, s, attempt(bob, "alpha", false, base)))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindActiveAttempt(ctx, alice, "alpha")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)

		require.NoError(t, tx.SaveAnswer(ctx, first.ID, "q1", "A"))
		require.NoError(t, tx.SaveAnswer(ctx, first.ID, "q2", "B"))
		got, err = tx.GetAttempt(ctx, first.ID, true)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"q1": "A", "q2": "B"}, got.RecordedAnswers)
		return nil
	}))

	require.NoError(t, complete(t, s, first.ID, base.Add(time.Minute)))
	assert.NoError(t, insert(t, s, attempt(alice, "alpha", false, base.Add(time.Hour))))
}

func oneDailyAttempt(t *testing.T, s store.Store) {
	alice := newUser(t, s)

	daily := attempt(alice, "alpha", true, base)
	require.NoError(t, insert(t, s, daily))
	assert.ErrorIs(t, insert(t, s, attempt(alice, "beta", true, base.Add(3*time.Hour))), store.ErrDuplicate)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindDailyAttempt(ctx, alice, base.Add(10*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, daily.ID, got.ID)
		assert.True(t, got.IsDaily)

		_, err = tx.FindDailyAttempt(ctx, alice, base.Add(24*time.Hour))
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))

	assert.NoError(t, insert(t, s, attempt(alice, "beta", true, base.Add(24*time.Hour))))
}

func completeAttemptOnce(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	a := attempt(alice, "alpha", false, base)
	require.NoError(t, insert(t, s, a))

	require.NoError(t, complete(t, s, a.ID, base.Add(time.Minute)))
	assert.ErrorIs(t, complete(t, s, a.ID, base.Add(2*time.Minute)), store.ErrStale)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetAttempt(ctx, a.ID, false)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, base.Add(time.Minute), *got.CompletedAt, time.Millisecond)
		require.NotNil(t, got.ScorePercentage)
		assert.Equal(t, 50, *got.ScorePercentage)
		assert.Len(t, got.QuestionResults, 2)

		_, err = tx.FindActiveAttempt(ctx, alice, "alpha")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveAnswer(ctx, a.ID, "q1", "B")
	})
	assert.ErrorIs(t, err, store.ErrStale)
}

func firstCompletedSince(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	early := attempt(alice, "alpha", false, base)
	require.NoError(t, insert(t, s, early))
	require.NoError(t, complete(t, s, early.ID, base.Add(time.Hour)))

	late := attempt(alice, "alpha", false, base.Add(2*time.Hour))
	require.NoError(t, insert(t, s, late))
	require.NoError(t, complete(t, s, late.ID, base.Add(3*time.Hour)))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FirstCompletedAttemptSince(ctx, alice, "alpha", base, base.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, early.ID, got.ID)

		got, err = tx.FirstCompletedAttemptSince(ctx, alice, "alpha", base.Add(90*time.Minute), base.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, late.ID, got.ID)

		_, err = tx.FirstCompletedAttemptSince(ctx, alice, "alpha", base.Add(4*time.Hour), base.Add(5*time.Hour))
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func progressVersion(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	p := &models.SubjectProgress{UserID: alice, SubjectArea: "math", TotalTestsTaken: 1, TotalQuestions: 2, CorrectAnswers: 1, AverageScore: 50, LastTestDate: base}

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertSubjectProgress(ctx, p) }))
	assert.Equal(t, int64(1), p.Version)

	dup := *p
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertSubjectProgress(ctx, &dup) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	stale := *p
	p.TotalTestsTaken = 2
	p.WeakAreas = []string{"fractions"}
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.UpdateSubjectProgress(ctx, p) }))
	assert.Equal(t, int64(2), p.Version)

	stale.TotalTestsTaken = 99
	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.UpdateSubjectProgress(ctx, &stale) })
	assert.ErrorIs(t, err, store.ErrStale)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.ListSubjectProgress(ctx, alice)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 2, list[0].TotalTestsTaken)
		assert.Equal(t, []string{"fractions"}, list[0].WeakAreas)
		assert.Empty(t, list[0].StrongAreas)
		return nil
	}))
}

func progressAppliedOnce(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	a := attempt(alice, "alpha", false, base)
	require.NoError(t, insert(t, s, a))

	mark := func() error {
		return inTx(t, s, func(ctx context.Context, tx store.Tx) error {
			return tx.MarkProgressApplied(ctx, a.ID, alice, "math", base)
		})
	}
	require.NoError(t, mark())
	assert.ErrorIs(t, mark(), store.ErrDuplicate)
}

func engagementVersion(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	st := &models.EngagementState{UserID: alice, DailyStreak: 1, LongestStreak: 1}
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.SaveEngagementState(ctx, st) }))
	assert.Equal(t, int64(1), st.Version)

	second := &models.EngagementState{UserID: alice, DailyStreak: 7}
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.SaveEngagementState(ctx, second) })
	assert.ErrorIs(t, err, store.ErrStale)

	last := base
	st.DailyStreak, st.LongestStreak, st.LastDailyTestAt = 2, 2, &last
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.SaveEngagementState(ctx, st) }))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetEngagementState(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, 2, got.DailyStreak)
		assert.Equal(t, int64(2), got.Version)
		require.NotNil(t, got.LastDailyTestAt)
		assert.WithinDuration(t, base, *got.LastDailyTestAt, time.Millisecond)
		return nil
	}))
}

func assignmentLifecycle(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	week := 7 * 24 * time.Hour
	live := &models.WeeklyAssignment{ID: uuid.NewString(), UserID: alice, TestID: "alpha", AssignedAt: base, ExpiresAt: base.Add(week)}
	stale := &models.WeeklyAssignment{ID: uuid.NewString(), UserID: alice, TestID: "beta", AssignedAt: base.Add(-2 * week), ExpiresAt: base.Add(-week)}
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertAssignment(ctx, live); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, stale)
	}))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		active, err := tx.ListActiveAssignments(ctx, alice, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, live.ID, active[0].ID)
		return nil
	}))

	a := attempt(alice, "alpha", false, base)
	require.NoError(t, insert(t, s, a))
	require.NoError(t, complete(t, s, a.ID, base.Add(time.Hour)))

	completeIt := func() error {
		return inTx(t, s, func(ctx context.Context, tx store.Tx) error {
			return tx.CompleteAssignment(ctx, live.ID, a.ID, base.Add(2*time.Hour))
		})
	}
	require.NoError(t, completeIt())
	assert.ErrorIs(t, completeIt(), store.ErrStale)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetAssignment(ctx, live.ID)
		require.NoError(t, err)
		assert.True(t, got.IsCompleted)
		require.NotNil(t, got.CompletedAttemptID)
		assert.Equal(t, a.ID, *got.CompletedAttemptID)

		n, err := tx.DeleteExpiredAssignments(ctx, base.Add(2*week))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = tx.GetAssignment(ctx, stale.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetAssignment(ctx, live.ID)
		assert.NoError(t, err)
		return nil
	}))
}

func oneEvaluation(t *testing.T, s store.Store) {
	alice := newUser(t, s)
	a := attempt(alice, "alpha", false, base)
	require.NoError(t, insert(t, s, a))
	require.NoError(t, complete(t, s, a.ID, base.Add(time.Minute)))

	ev := func(areas ...string) *models.Evaluation {
		return &models.Evaluation{
			ID:               uuid.NewString(),
			AttemptID:        a.ID,
			UserID:           alice,
			OverallScore:     72.5,
			DetailedFeedback: models.FeedbackBag{"q1": "solid"},
			ImprovementAreas: areas,
			Strengths:        []string{"algebra"},
			CreatedAt:        base.Add(time.Hour),
		}
	}
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertEvaluation(ctx, ev("ratios")) }))
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertEvaluation(ctx, ev("other")) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetEvaluation(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"ratios"}, got.ImprovementAreas)
		assert.Equal(t, []string{"algebra"}, got.Strengths)
		assert.Equal(t, "solid", got.DetailedFeedback["q1"])
		assert.InDelta(t, 72.5, got.OverallScore, 0.001)
		return nil
	}))
}

func uniqueEmail(t *testing.T, s store.Store) {
	id := uuid.NewString()
	u := &models.User{ID: id, Email: "sam@example.test", Name: "Sam", Tier: models.TierPremium, Password: "hash", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertUser(ctx, u) }))

	other := *u
	other.ID = uuid.NewString()
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error { return tx.InsertUser(ctx, &other) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetUserByEmail(ctx, "sam@example.test")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)

		tier, err := tx.GetUserTier(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TierPremium, tier)

		_, err = tx.GetUserTier(ctx, other.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}
