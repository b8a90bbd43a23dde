// Package attempts runs the attempt lifecycle: in_progress -> completed.
//
// Each user has at most one in_progress attempt per test and at most one
// daily attempt per calendar day. Completion is a one-shot compare-and-swap
// and commits in the same transaction as the progress and streak updates
// it causes. A repeated submit returns the stored result.
package attempts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examprep/backend/internal/engagement"
	"github.com/examprep/backend/internal/events"
	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/progress"
	"github.com/examprep/backend/internal/scoring"
	"github.com/examprep/backend/internal/store"
)

type Service struct {
	store   store.Store
	emitter events.Emitter
	log     *slog.Logger
	now     func() time.Time
}

func NewService(s store.Store, emitter events.Emitter, log *slog.Logger) *Service {
	return &Service{
		store:   s,
		emitter: emitter,
		log:     log.With("component", "attempts"),
		now:     time.Now,
	}
}

func startResponse(a *models.Attempt, def *models.TestDefinition, resumed bool) *models.StartAttemptResponse {
	return &models.StartAttemptResponse{
		AttemptID:       a.ID,
		TestID:          a.TestID,
		Status:          a.Status,
		Questions:       def.Views(),
		DurationMinutes: def.DurationMinutes,
		StartedAt:       a.StartedAt,
		Resumed:         resumed,
	}
}

// StartAttempt returns the caller's in_progress attempt on testID, creating
// it if needed. For a daily start when a daily attempt already exists today,
// that attempt is returned together with models.ErrDailyAlreadyStarted.
// A daily start on a test with an unfinished non-daily attempt fails with
// models.ErrAttemptInProgress instead of resuming it.
func (s *Service) StartAttempt(ctx context.Context, id models.Identity, testID string, isDaily bool) (*models.StartAttemptResponse, error) {
	var out *models.StartAttemptResponse
	outcome := "created"

	err := store.WithRetry(ctx, s.store, "start_attempt", func(tx store.Tx) error {
		out = nil
		if err := tx.LockUser(ctx, id.UserID); err != nil {
			return err
		}

		def, err := tx.GetTestDefinition(ctx, testID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("test %s: %w", testID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get test definition: %w", err)
		}
		if !def.IsActive {
			return models.ErrTestInactive
		}
		if !def.VisibleTo(id.Tier) {
			return models.ErrAccessDenied
		}
		if err := scoring.ValidateDefinition(def); err != nil {
			return err
		}

		active, err := tx.FindActiveAttempt(ctx, id.UserID, testID)
		if err == nil {
			if isDaily && !active.IsDaily {
				return models.ErrAttemptInProgress
			}
			outcome = "resumed"
			out = startResponse(active, def, true)
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("find active attempt: %w", err)
		}

		now := s.now().UTC()
		if isDaily {
			daily, err := tx.FindDailyAttempt(ctx, id.UserID, now)
			if err == nil {
				dailyDef, err := tx.GetTestDefinition(ctx, daily.TestID)
				if err != nil {
					return fmt.Errorf("get daily test definition: %w", err)
				}
				outcome = "daily_exists"
				out = startResponse(daily, dailyDef, false)
				return models.ErrDailyAlreadyStarted
			}
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("find daily attempt: %w", err)
			}
		}

		a := &models.Attempt{
			ID:              uuid.NewString(),
			UserID:          id.UserID,
			TestID:          def.ID,
			SubjectArea:     def.SubjectArea,
			Status:          models.AttemptInProgress,
			IsDaily:         isDaily,
			StartedAt:       now,
			TotalQuestions:  def.TotalQuestions,
			RecordedAnswers: map[string]string{},
		}
		if isDaily {
			day := store.Day(now)
			a.DailyDate = &day
		}
		if err := tx.InsertAttempt(ctx, a); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// Lost a race with a concurrent start; re-read on retry.
				return store.ErrStale
			}
			return fmt.Errorf("insert attempt: %w", err)
		}
		outcome = "created"
		out = startResponse(a, def, false)
		return nil
	})

	if err != nil && !errors.Is(err, models.ErrDailyAlreadyStarted) {
		return nil, err
	}
	metrics.AttemptsStarted.WithLabelValues(outcome).Inc()
	if outcome == "created" {
		s.log.Info("attempt started", "user_id", id.UserID, "test_id", testID, "attempt_id", out.AttemptID, "daily", isDaily)
	}
	return out, err
}

// ownedAttempt loads an attempt and checks that userID owns it.
func ownedAttempt(ctx context.Context, tx store.Tx, userID, attemptID string, forUpdate bool) (*models.Attempt, error) {
	a, err := tx.GetAttempt(ctx, attemptID, forUpdate)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.UserID != userID {
		return nil, models.ErrForbidden
	}
	return a, nil
}

func (s *Service) GetAttempt(ctx context.Context, userID, attemptID string) (*models.Attempt, error) {
	var out *models.Attempt
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = ownedAttempt(ctx, tx, userID, attemptID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordAnswer autosaves one answer. Answers can only be recorded while
// the attempt is in progress.
func (s *Service) RecordAnswer(ctx context.Context, userID, attemptID, questionID, answer string) error {
	return store.WithRetry(ctx, s.store, "record_answer", func(tx store.Tx) error {
		a, err := ownedAttempt(ctx, tx, userID, attemptID, true)
		if err != nil {
			return err
		}
		if a.IsCompleted() {
			return models.ErrAlreadyCompleted
		}

		def, err := tx.GetTestDefinition(ctx, a.TestID)
		if err != nil {
			return fmt.Errorf("get test definition: %w", err)
		}
		known := false
		for _, q := range def.Questions {
			if q.QuestionID == questionID {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: question %q is not part of test %s", models.ErrInvalidInput, questionID, def.ID)
		}

		return tx.SaveAnswer(ctx, attemptID, questionID, answer)
	})
}

// SubmitAttempt scores and completes an attempt. Submitting an already
// completed attempt returns its stored result with Replayed set.
func (s *Service) SubmitAttempt(ctx context.Context, userID, attemptID string, answers map[string]string, timeTakenSeconds int) (*models.ScoredResult, error) {
	var (
		result    *models.ScoredResult
		submitted *models.Attempt
	)

	err := store.WithRetry(ctx, s.store, "submit_attempt", func(tx store.Tx) error {
		result, submitted = nil, nil

		a, err := ownedAttempt(ctx, tx, userID, attemptID, true)
		if err != nil {
			return err
		}
		if a.IsCompleted() {
			result = models.ResultFromAttempt(a)
			result.Replayed = true
			return nil
		}

		def, err := tx.GetTestDefinition(ctx, a.TestID)
		if err != nil {
			return fmt.Errorf("get test definition: %w", err)
		}

		merged := make(map[string]string, len(a.RecordedAnswers)+len(answers))
		for q, ans := range a.RecordedAnswers {
			merged[q] = ans
		}
		for q, ans := range answers {
			merged[q] = ans
		}

		scored, err := scoring.Score(def.Questions, merged, def.PassingScore)
		if err != nil {
			return fmt.Errorf("score attempt %s: %w", a.ID, err)
		}

		now := s.now().UTC()
		taken := timeTakenSeconds
		if taken <= 0 {
			taken = int(now.Sub(a.StartedAt).Seconds())
		}

		c := models.AttemptCompletion{
			AttemptID:        a.ID,
			CompletedAt:      now,
			CorrectAnswers:   scored.CorrectCount,
			Score:            scored.Points,
			ScorePercentage:  scored.Percentage,
			Passed:           scored.Passed,
			TimeTakenSeconds: taken,
			RecordedAnswers:  merged,
			QuestionResults:  scored.PerQuestion,
		}
		if err := tx.CompleteAttempt(ctx, c); err != nil {
			return err
		}

		_, err = progress.Apply(ctx, tx, progress.Delta{
			AttemptID:       a.ID,
			UserID:          a.UserID,
			SubjectArea:     a.SubjectArea,
			QuestionCount:   scored.Total,
			CorrectCount:    scored.CorrectCount,
			ScorePercentage: scored.Percentage,
		}, now)
		if errors.Is(err, models.ErrAlreadyApplied) {
			s.log.Info("progress already applied", "attempt_id", a.ID)
		} else if err != nil {
			return err
		}

		if a.IsDaily {
			if _, _, err := engagement.ApplyDailyCompletion(ctx, tx, a.UserID, now); err != nil {
				return err
			}
		}

		result = &models.ScoredResult{
			AttemptID:       a.ID,
			Score:           scored.Points,
			Percentage:      scored.Percentage,
			CorrectAnswers:  scored.CorrectCount,
			TotalQuestions:  scored.Total,
			Passed:          scored.Passed,
			QuestionResults: scored.PerQuestion,
		}
		submitted = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		metrics.AttemptsSubmitted.WithLabelValues("replayed").Inc()
		s.log.Info("submit replayed for completed attempt", "attempt_id", attemptID)
		return result, nil
	}

	metrics.AttemptsSubmitted.WithLabelValues("scored").Inc()
	metrics.ScorePercentage.Observe(float64(result.Percentage))
	s.log.Info("attempt submitted", "user_id", userID, "attempt_id", attemptID, "percentage", result.Percentage, "passed", result.Passed)

	events.Publish(ctx, s.emitter, events.New(models.EventTestSubmitted, models.TestSubmittedPayload{
		AttemptID:       submitted.ID,
		UserID:          submitted.UserID,
		TestID:          submitted.TestID,
		Score:           result.Score,
		Percentage:      result.Percentage,
		QuestionResults: result.QuestionResults,
	}, s.now()))
	return result, nil
}
