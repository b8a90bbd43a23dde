// Package progress maintains per-user, per-subject running statistics.
// SubjectProgress rows are written only through Apply and ReplaceAreas.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

// Delta is the contribution of one completed attempt.
type Delta struct {
	AttemptID       string
	UserID          string
	SubjectArea     string
	QuestionCount   int
	CorrectCount    int
	ScorePercentage int
}

// IncrementalMean folds x into a mean taken over n samples.
func IncrementalMean(old float64, n int, x float64) float64 {
	if n <= 0 {
		return x
	}
	return (old*float64(n) + x) / float64(n+1)
}

// Apply folds d into the subject row inside tx. The attempt id is recorded
// in the same transaction, so a replay fails with models.ErrAlreadyApplied
// and leaves the row untouched. A lost version race returns store.ErrStale.
func Apply(ctx context.Context, tx store.Tx, d Delta, now time.Time) (*models.SubjectProgress, error) {
	if err := tx.MarkProgressApplied(ctx, d.AttemptID, d.UserID, d.SubjectArea, now); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("attempt %s: %w", d.AttemptID, models.ErrAlreadyApplied)
		}
		return nil, fmt.Errorf("mark progress applied: %w", err)
	}

	p, err := tx.GetSubjectProgress(ctx, d.UserID, d.SubjectArea)
	if errors.Is(err, store.ErrNotFound) {
		p = &models.SubjectProgress{
			UserID:          d.UserID,
			SubjectArea:     d.SubjectArea,
			TotalTestsTaken: 1,
			TotalQuestions:  d.QuestionCount,
			CorrectAnswers:  d.CorrectCount,
			AverageScore:    float64(d.ScorePercentage),
			WeakAreas:       []string{},
			StrongAreas:     []string{},
			LastTestDate:    now,
		}
		if err := tx.InsertSubjectProgress(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return nil, store.ErrStale
			}
			return nil, fmt.Errorf("insert subject progress: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject progress: %w", err)
	}

	p.AverageScore = IncrementalMean(p.AverageScore, p.TotalTestsTaken, float64(d.ScorePercentage))
	p.TotalTestsTaken++
	p.TotalQuestions += d.QuestionCount
	p.CorrectAnswers += d.CorrectCount
	p.LastTestDate = now
	if err := tx.UpdateSubjectProgress(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReplaceAreas overwrites weak and strong areas with the latest diagnostic.
func ReplaceAreas(ctx context.Context, tx store.Tx, userID, subjectArea string, weak, strong []string) (*models.SubjectProgress, error) {
	p, err := tx.GetSubjectProgress(ctx, userID, subjectArea)
	if err != nil {
		return nil, err
	}
	p.WeakAreas = append([]string{}, weak...)
	p.StrongAreas = append([]string{}, strong...)
	if err := tx.UpdateSubjectProgress(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type Service struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(s store.Store, log *slog.Logger) *Service {
	return &Service{store: s, log: log.With("component", "progress"), now: time.Now}
}

// deltaOf reads the contribution of a completed attempt from its stored
// result.
func deltaOf(a *models.Attempt) Delta {
	d := Delta{
		AttemptID:     a.ID,
		UserID:        a.UserID,
		SubjectArea:   a.SubjectArea,
		QuestionCount: a.TotalQuestions,
	}
	if a.CorrectAnswers != nil {
		d.CorrectCount = *a.CorrectAnswers
	}
	if a.ScorePercentage != nil {
		d.ScorePercentage = *a.ScorePercentage
	}
	return d
}

// ApplyCompletedAttempt folds a stored, completed attempt into its owner's
// subject row in its own transaction. Everything applied comes from the
// attempt itself. Submit already applies progress, so for attempts completed
// through the API this reports models.ErrAlreadyApplied.
func (s *Service) ApplyCompletedAttempt(ctx context.Context, attemptID string) (*models.SubjectProgress, error) {
	var out *models.SubjectProgress
	err := store.WithRetry(ctx, s.store, "apply_progress", func(tx store.Tx) error {
		a, err := tx.GetAttempt(ctx, attemptID, false)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("attempt %s: %w", attemptID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}
		if !a.IsCompleted() {
			return fmt.Errorf("attempt %s: %w", a.ID, models.ErrNotYetCompleted)
		}
		out, err = Apply(ctx, tx, deltaOf(a), s.now().UTC())
		return err
	})
	if errors.Is(err, models.ErrAlreadyApplied) {
		metrics.DuplicateDeliveries.WithLabelValues("progress").Inc()
		s.log.Info("progress already applied", "attempt_id", attemptID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("progress applied", "attempt_id", attemptID, "user_id", out.UserID, "subject_area", out.SubjectArea)
	return out, nil
}

func (s *Service) ListSubjectProgress(ctx context.Context, userID string) ([]models.SubjectProgress, error) {
	var out []models.SubjectProgress
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListSubjectProgress(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list subject progress: %w", err)
	}
	return out, nil
}
