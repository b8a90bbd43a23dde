package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

// NextStreak advances a streak for a daily attempt completed at
// completedAt. counted is false when the completion's calendar day was
// already counted, in which case the state is returned unchanged.
//
//	last == yesterday  -> streak + 1
//	last == today      -> no-op
//	otherwise          -> streak = 1
func NextStreak(s models.EngagementState, completedAt time.Time) (models.EngagementState, bool) {
	today := store.Day(completedAt)

	if s.LastDailyTestAt != nil {
		last := store.Day(*s.LastDailyTestAt)
		if !last.Before(today) {
			return s, false
		}
		if last.Equal(today.AddDate(0, 0, -1)) {
			s.DailyStreak++
		} else {
			s.DailyStreak = 1
		}
	} else {
		s.DailyStreak = 1
	}

	s.LastDailyTestAt = &today
	if s.DailyStreak > s.LongestStreak {
		s.LongestStreak = s.DailyStreak
	}
	return s, true
}

// ApplyDailyCompletion updates the user's streak inside tx. It is the only
// writer of EngagementState.
func ApplyDailyCompletion(ctx context.Context, tx store.Tx, userID string, completedAt time.Time) (*models.EngagementState, bool, error) {
	cur, err := tx.GetEngagementState(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		cur = &models.EngagementState{UserID: userID}
	} else if err != nil {
		return nil, false, fmt.Errorf("get engagement state: %w", err)
	}

	next, counted := NextStreak(*cur, completedAt)
	if !counted {
		return cur, false, nil
	}
	if err := tx.SaveEngagementState(ctx, &next); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}
