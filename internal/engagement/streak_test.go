package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
	"github.com/examprep/backend/internal/store/memory"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestNextStreak(t *testing.T) {
	tests := []struct {
		name        string
		streak      int
		longest     int
		last        *time.Time
		completedAt time.Time
		wantStreak  int
		wantLongest int
		wantCounted bool
	}{
		{"first ever", 0, 0, nil, at(10, 9), 1, 1, true},
		{"yesterday continues", 4, 4, ptr(at(9, 23)), at(10, 0), 5, 5, true},
		{"same day is no-op", 4, 6, ptr(at(10, 1)), at(10, 22), 4, 6, false},
		{"three days ago resets", 4, 6, ptr(at(7, 12)), at(10, 12), 1, 6, true},
		{"two days ago resets", 3, 3, ptr(at(8, 12)), at(10, 12), 1, 3, true},
		{"out of order is no-op", 2, 2, ptr(at(11, 8)), at(10, 8), 2, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := models.EngagementState{UserID: "u1", DailyStreak: tt.streak, LongestStreak: tt.longest, LastDailyTestAt: tt.last}
			got, counted := NextStreak(in, tt.completedAt)
			assert.Equal(t, tt.wantCounted, counted)
			assert.Equal(t, tt.wantStreak, got.DailyStreak)
			assert.Equal(t, tt.wantLongest, got.LongestStreak)
			if counted {
				require.NotNil(t, got.LastDailyTestAt)
				assert.Equal(t, store.Day(tt.completedAt), *got.LastDailyTestAt)
			}
		})
	}
}

func TestApplyDailyCompletion_PersistsAndGuardsRetries(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	apply := func(when time.Time) (*models.EngagementState, bool) {
		var st *models.EngagementState
		var counted bool
		require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
			var err error
			st, counted, err = ApplyDailyCompletion(ctx, tx, "u1", when)
			return err
		}))
		return st, counted
	}

	st, counted := apply(at(9, 20))
	assert.True(t, counted)
	assert.Equal(t, 1, st.DailyStreak)

	st, counted = apply(at(10, 8))
	assert.True(t, counted)
	assert.Equal(t, 2, st.DailyStreak)

	st, counted = apply(at(10, 21))
	assert.False(t, counted)
	assert.Equal(t, 2, st.DailyStreak)

	st, counted = apply(at(13, 8))
	assert.True(t, counted)
	assert.Equal(t, 1, st.DailyStreak)
	assert.Equal(t, 2, st.LongestStreak)
}
