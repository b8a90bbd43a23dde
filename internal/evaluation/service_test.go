package evaluation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/attempts"
	"github.com/examprep/backend/internal/events"
	"github.com/examprep/backend/internal/events/eventstest"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
	"github.com/examprep/backend/internal/store/memory"
	"github.com/examprep/backend/internal/store/storetest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store    *memory.Store
	rec      *eventstest.Recorder
	attempts *attempts.Service
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), rec: eventstest.NewRecorder()}
	f.attempts = attempts.NewService(f.store, events.Log{}, quiet)
	f.svc = NewService(f.store, f.rec, quiet)
	storetest.Seed(t, f.store, storetest.Test("algebra", "math", 50, "A", "B"))
	storetest.AddUser(t, f.store, "free-user", models.TierFree)
	storetest.AddUser(t, f.store, "premium-user", models.TierPremium)
	return f
}

// completed starts and submits an attempt, returning its id.
func (f *fixture) completed(t *testing.T, id models.Identity) string {
	t.Helper()
	ctx := context.Background()
	start, err := f.attempts.StartAttempt(ctx, id, "algebra", false)
	require.NoError(t, err)
	_, err = f.attempts.SubmitAttempt(ctx, id.UserID, start.AttemptID, map[string]string{"q1": "A"}, 10)
	require.NoError(t, err)
	return start.AttemptID
}

func (f *fixture) subject(t *testing.T, user string) *models.SubjectProgress {
	t.Helper()
	ctx := context.Background()
	var p *models.SubjectProgress
	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetSubjectProgress(ctx, user, "math")
		return err
	}))
	return p
}

func TestRecordEvaluation_ReplacesAreas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := models.Identity{UserID: "free-user", Tier: models.TierFree}

	first := f.completed(t, user)
	_, err := f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{
		AttemptID:        first,
		OverallScore:     55,
		DetailedFeedback: models.FeedbackBag{"q1": map[string]any{"note": "good"}},
		ImprovementAreas: []string{"fractions", "ratios"},
		Strengths:        []string{"addition"},
	})
	require.NoError(t, err)
	p := f.subject(t, user.UserID)
	assert.Equal(t, []string{"fractions", "ratios"}, p.WeakAreas)
	assert.Equal(t, []string{"addition"}, p.StrongAreas)

	second := f.completed(t, user)
	_, err = f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{
		AttemptID:        second,
		OverallScore:     70,
		ImprovementAreas: []string{"geometry"},
	})
	require.NoError(t, err)
	p = f.subject(t, user.UserID)
	assert.Equal(t, []string{"geometry"}, p.WeakAreas)
	assert.Empty(t, p.StrongAreas)
	assert.Equal(t, 2, p.TotalTestsTaken)

	// Free tier never triggers recommendations.
	assert.Empty(t, f.rec.Drain())
}

func TestRecordEvaluation_RejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.completed(t, models.Identity{UserID: "free-user", Tier: models.TierFree})

	req := models.RecordEvaluationRequest{AttemptID: attemptID, OverallScore: 40, ImprovementAreas: []string{"a"}}
	_, err := f.svc.RecordEvaluation(ctx, req)
	require.NoError(t, err)

	req.ImprovementAreas = []string{"b"}
	_, err = f.svc.RecordEvaluation(ctx, req)
	assert.ErrorIs(t, err, models.ErrDuplicateEvaluation)

	e, err := f.svc.GetEvaluation(ctx, "free-user", attemptID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, e.ImprovementAreas)
	assert.Equal(t, []string{"a"}, f.subject(t, "free-user").WeakAreas)
}

func TestRecordEvaluation_RequiresCompletedAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{AttemptID: "missing"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	start, err := f.attempts.StartAttempt(ctx, models.Identity{UserID: "free-user", Tier: models.TierFree}, "algebra", false)
	require.NoError(t, err)
	_, err = f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{AttemptID: start.AttemptID})
	assert.ErrorIs(t, err, models.ErrNotYetCompleted)
}

func TestRecordEvaluation_PremiumTriggersRecommendation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.completed(t, models.Identity{UserID: "premium-user", Tier: models.TierPremium})

	_, err := f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{
		AttemptID:        attemptID,
		OverallScore:     90,
		ImprovementAreas: []string{"proofs"},
		Strengths:        []string{"algebra"},
	})
	require.NoError(t, err)

	evs := f.rec.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventRecommendationRequested, evs[0].Type)
	assert.Equal(t, models.RecommendationRequestedPayload{
		UserID:           "premium-user",
		ImprovementAreas: []string{"proofs"},
		Strengths:        []string{"algebra"},
		SubjectArea:      "math",
	}, evs[0].Payload)
}

func TestRecordEvaluation_UnknownUserCountsAsFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.completed(t, models.Identity{UserID: "ghost", Tier: models.TierPremium})

	_, err := f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{AttemptID: attemptID, OverallScore: 60})
	require.NoError(t, err)
	assert.Empty(t, f.rec.Drain())
}

type brokenEmitter struct{}

func (brokenEmitter) Emit(ctx context.Context, ev models.Event) error {
	return errors.New("queue unavailable")
}

func TestRecordEvaluation_EmitFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc = NewService(f.store, brokenEmitter{}, quiet)
	attemptID := f.completed(t, models.Identity{UserID: "premium-user", Tier: models.TierPremium})

	_, err := f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{AttemptID: attemptID, OverallScore: 80})
	require.NoError(t, err)

	_, err = f.svc.GetEvaluation(ctx, "premium-user", attemptID)
	assert.NoError(t, err)
}

func TestGetEvaluation_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.completed(t, models.Identity{UserID: "free-user", Tier: models.TierFree})

	_, err := f.svc.GetEvaluation(ctx, "free-user", attemptID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.RecordEvaluation(ctx, models.RecordEvaluationRequest{AttemptID: attemptID, OverallScore: 10})
	require.NoError(t, err)

	_, err = f.svc.GetEvaluation(ctx, "premium-user", attemptID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestHandler_DuplicateIsOK(t *testing.T) {
	f := newFixture(t)
	attemptID := f.completed(t, models.Identity{UserID: "free-user", Tier: models.TierFree})
	h := NewHandler(f.svc)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Record(rec, httptest.NewRequest(http.MethodPost, "/webhooks/evaluations", strings.NewReader(body)))
		return rec
	}

	body := `{"attempt_id":"` + attemptID + `","overall_score":75,"detailed_feedback":{"q1":{"ok":true}},"improvement_areas":["x"],"strengths":["y"]}`
	assert.Equal(t, http.StatusCreated, post(body).Code)

	rec := post(body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, post(`{"attempt_id":"`+attemptID+`","overall_score":101}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"overall_score":50}`).Code)
}
