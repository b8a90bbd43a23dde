// Package evaluation accepts externally computed feedback for completed
// attempts.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examprep/backend/internal/events"
	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/progress"
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
		log:     log.With("component", "evaluation"),
		now:     time.Now,
	}
}

// RecordEvaluation stores the evaluation of a completed attempt and
// replaces the subject's weak and strong areas with it. A second
// evaluation for the same attempt fails with models.ErrDuplicateEvaluation.
// Premium users additionally trigger a recommendation request.
func (s *Service) RecordEvaluation(ctx context.Context, req models.RecordEvaluationRequest) (*models.Evaluation, error) {
	var (
		out     *models.Evaluation
		subject string
		tier    models.Tier
	)

	err := store.WithRetry(ctx, s.store, "record_evaluation", func(tx store.Tx) error {
		a, err := tx.GetAttempt(ctx, req.AttemptID, true)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("attempt %s: %w", req.AttemptID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}
		if !a.IsCompleted() {
			return fmt.Errorf("attempt %s: %w", a.ID, models.ErrNotYetCompleted)
		}

		e := &models.Evaluation{
			ID:               uuid.NewString(),
			AttemptID:        a.ID,
			UserID:           a.UserID,
			OverallScore:     req.OverallScore,
			DetailedFeedback: req.DetailedFeedback,
			ImprovementAreas: append([]string{}, req.ImprovementAreas...),
			Strengths:        append([]string{}, req.Strengths...),
			CreatedAt:        s.now().UTC(),
		}
		if e.DetailedFeedback == nil {
			e.DetailedFeedback = models.FeedbackBag{}
		}
		if err := tx.InsertEvaluation(ctx, e); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return models.ErrDuplicateEvaluation
			}
			return fmt.Errorf("insert evaluation: %w", err)
		}

		_, err = progress.ReplaceAreas(ctx, tx, a.UserID, a.SubjectArea, e.ImprovementAreas, e.Strengths)
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("no subject progress for evaluated attempt", "attempt_id", a.ID, "subject_area", a.SubjectArea)
		} else if err != nil {
			return err
		}

		tier, err = tx.GetUserTier(ctx, a.UserID)
		if errors.Is(err, store.ErrNotFound) {
			tier = models.TierFree
		} else if err != nil {
			return fmt.Errorf("get user tier: %w", err)
		}

		out = e
		subject = a.SubjectArea
		return nil
	})
	if errors.Is(err, models.ErrDuplicateEvaluation) {
		metrics.DuplicateDeliveries.WithLabelValues("evaluation").Inc()
		s.log.Info("duplicate evaluation ignored", "attempt_id", req.AttemptID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("evaluation recorded", "attempt_id", out.AttemptID, "user_id", out.UserID, "tier", tier)

	if tier == models.TierPremium {
		events.Publish(ctx, s.emitter, events.New(models.EventRecommendationRequested, models.RecommendationRequestedPayload{
			UserID:           out.UserID,
			ImprovementAreas: out.ImprovementAreas,
			Strengths:        out.Strengths,
			SubjectArea:      subject,
		}, out.CreatedAt))
	}
	return out, nil
}

func (s *Service) GetEvaluation(ctx context.Context, userID, attemptID string) (*models.Evaluation, error) {
	var out *models.Evaluation
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAttempt(ctx, attemptID, false)
		if errors.Is(err, store.ErrNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}
		if a.UserID != userID {
			return models.ErrForbidden
		}
		out, err = tx.GetEvaluation(ctx, attemptID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("evaluation for %s: %w", attemptID, models.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
