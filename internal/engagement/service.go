// Package engagement derives daily-challenge and weekly-assignment state
// from completed attempts and the calendar.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/examprep/backend/internal/events"
	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

const DefaultAssignmentTTL = 7 * 24 * time.Hour

type Service struct {
	store   store.Store
	emitter events.Emitter
	log     *slog.Logger
	ttl     time.Duration
	now     func() time.Time
	pick    func(n int) int
}

func NewService(s store.Store, emitter events.Emitter, log *slog.Logger, assignmentTTL time.Duration) *Service {
	if assignmentTTL <= 0 {
		assignmentTTL = DefaultAssignmentTTL
	}
	return &Service{
		store:   s,
		emitter: emitter,
		log:     log.With("component", "engagement"),
		ttl:     assignmentTTL,
		now:     time.Now,
		pick:    rand.IntN,
	}
}

func (s *Service) GetState(ctx context.Context, userID string) (*models.EngagementState, error) {
	var out *models.EngagementState
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		st, err := tx.GetEngagementState(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			out = &models.EngagementState{UserID: userID}
			return nil
		}
		out = st
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get engagement state: %w", err)
	}
	return out, nil
}

// visibleActiveTests lists active tests the tier may take.
func visibleActiveTests(ctx context.Context, tx store.Tx, tier models.Tier) ([]models.TestDefinition, error) {
	all, err := tx.ListActiveTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tests: %w", err)
	}
	out := all[:0]
	for _, t := range all {
		if t.VisibleTo(tier) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) pickTest(tests []models.TestDefinition) models.TestDefinition {
	return tests[s.pick(len(tests))]
}

// PeekDailyTest returns today's daily test. If the user has not started one
// yet, a visible active test is drawn at random and nothing is stored, so
// two peeks may differ.
func (s *Service) PeekDailyTest(ctx context.Context, id models.Identity) (*models.DailyTestResponse, error) {
	now := s.now().UTC()
	var out *models.DailyTestResponse
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		out = &models.DailyTestResponse{}
		st, err := tx.GetEngagementState(ctx, id.UserID)
		if err == nil {
			out.DailyStreak = st.DailyStreak
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("get engagement state: %w", err)
		}

		a, err := tx.FindDailyAttempt(ctx, id.UserID, now)
		if err == nil {
			def, err := tx.GetTestDefinition(ctx, a.TestID)
			if err != nil {
				return fmt.Errorf("get daily test definition: %w", err)
			}
			attemptID := a.ID
			out.Test = def.Summary()
			out.AttemptID = &attemptID
			out.Started = true
			out.Completed = a.IsCompleted()
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("find daily attempt: %w", err)
		}

		candidates, err := visibleActiveTests(ctx, tx, id.Tier)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return fmt.Errorf("%w: no active tests for tier %s", models.ErrNotFound, id.Tier)
		}
		out.Test = s.pickTest(candidates).Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAssignment gives a free-tier user a weekly assignment. When the
// user already holds an active one it is returned together with
// models.ErrAssignmentAlreadyActive. An empty testID draws a random test.
func (s *Service) CreateAssignment(ctx context.Context, id models.Identity, testID string) (*models.WeeklyAssignment, error) {
	if id.Tier != models.TierFree {
		return nil, models.ErrNotEligible
	}

	var out *models.WeeklyAssignment
	err := store.WithRetry(ctx, s.store, "create_assignment", func(tx store.Tx) error {
		out = nil
		if err := tx.LockUser(ctx, id.UserID); err != nil {
			return err
		}
		now := s.now().UTC()

		active, err := tx.ListActiveAssignments(ctx, id.UserID, now)
		if err != nil {
			return fmt.Errorf("list active assignments: %w", err)
		}
		if len(active) > 0 {
			out = &active[0]
			return models.ErrAssignmentAlreadyActive
		}

		var def models.TestDefinition
		if testID == "" {
			candidates, err := visibleActiveTests(ctx, tx, id.Tier)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				return fmt.Errorf("%w: no active tests for tier %s", models.ErrNotFound, id.Tier)
			}
			def = s.pickTest(candidates)
		} else {
			found, err := tx.GetTestDefinition(ctx, testID)
			if errors.Is(err, store.ErrNotFound) || (err == nil && !found.IsActive) {
				return models.ErrTestInactive
			}
			if err != nil {
				return fmt.Errorf("get test definition: %w", err)
			}
			if !found.VisibleTo(id.Tier) {
				return models.ErrAccessDenied
			}
			def = *found
		}

		a := &models.WeeklyAssignment{
			ID:         uuid.NewString(),
			UserID:     id.UserID,
			TestID:     def.ID,
			AssignedAt: now,
			ExpiresAt:  now.Add(s.ttl),
		}
		if err := tx.InsertAssignment(ctx, a); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAssignmentAlreadyActive) {
			return out, err
		}
		return nil, err
	}
	s.log.Info("weekly assignment created", "user_id", id.UserID, "assignment_id", out.ID, "test_id", out.TestID)
	return out, nil
}

func (s *Service) ListActiveAssignments(ctx context.Context, userID string) ([]models.WeeklyAssignment, error) {
	var out []models.WeeklyAssignment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListActiveAssignments(ctx, userID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return out, nil
}

// MarkAssignmentCompleted completes an assignment once the user has a
// completed attempt of the assigned test made between assigned_at and
// expires_at. It succeeds at most once per assignment.
func (s *Service) MarkAssignmentCompleted(ctx context.Context, userID, assignmentID string) (*models.WeeklyAssignment, error) {
	var out *models.WeeklyAssignment
	err := store.WithRetry(ctx, s.store, "complete_assignment", func(tx store.Tx) error {
		a, err := tx.GetAssignment(ctx, assignmentID)
		if errors.Is(err, store.ErrNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get assignment: %w", err)
		}
		if a.UserID != userID {
			return models.ErrForbidden
		}
		if a.IsCompleted {
			return models.ErrAssignmentCompleted
		}

		attempt, err := tx.FirstCompletedAttemptSince(ctx, userID, a.TestID, a.AssignedAt, a.ExpiresAt)
		if errors.Is(err, store.ErrNotFound) {
			return models.ErrNotYetCompleted
		}
		if err != nil {
			return fmt.Errorf("find completed attempt: %w", err)
		}

		at := s.now().UTC()
		if err := tx.CompleteAssignment(ctx, a.ID, attempt.ID, at); err != nil {
			return err
		}
		a.IsCompleted = true
		a.CompletedAt = &at
		a.CompletedAttemptID = &attempt.ID
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Publish(ctx, s.emitter, events.New(models.EventAssignmentCompleted, models.AssignmentCompletedPayload{
		AssignmentID: out.ID,
		UserID:       out.UserID,
		TestID:       out.TestID,
		AttemptID:    *out.CompletedAttemptID,
		CompletedAt:  *out.CompletedAt,
	}, *out.CompletedAt))
	s.log.Info("weekly assignment completed", "user_id", userID, "assignment_id", out.ID)
	return out, nil
}

// SweepExpiredAssignments deletes incomplete assignments past expiry.
func (s *Service) SweepExpiredAssignments(ctx context.Context) (int64, error) {
	var n int64
	err := store.WithRetry(ctx, s.store, "sweep_assignments", func(tx store.Tx) error {
		var err error
		n, err = tx.DeleteExpiredAssignments(ctx, s.now().UTC())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sweep expired assignments: %w", err)
	}
	metrics.AssignmentsSwept.Add(float64(n))
	return n, nil
}

// ── Background Worker ───────────────────────────────────

func (s *Service) StartSweepWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("assignment sweep worker started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("assignment sweep worker shutting down")
			return
		case <-ticker.C:
			n, err := s.SweepExpiredAssignments(ctx)
			if err != nil {
				s.log.Error("assignment sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("swept expired assignments", "deleted", n)
			}
		}
	}
}
