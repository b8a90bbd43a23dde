// Package memory is an in-process Store used for local development and
// tests. A transaction works on a copy of the state and swaps it in on
// success, so a failing fn leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

type activeKey struct{ userID, testID string }

type dailyKey struct {
	userID string
	day    string
}

type progressKey struct{ userID, subject string }

type state struct {
	tests       map[string]models.TestDefinition
	users       map[string]models.User
	emails      map[string]string
	attempts    map[string]models.Attempt
	active      map[activeKey]string
	daily       map[dailyKey]string
	progress    map[progressKey]models.SubjectProgress
	applied     map[string]bool
	engagement  map[string]models.EngagementState
	assignments map[string]models.WeeklyAssignment
	evaluations map[string]models.Evaluation
}

func newState() *state {
	return &state{
		tests:       map[string]models.TestDefinition{},
		users:       map[string]models.User{},
		emails:      map[string]string{},
		attempts:    map[string]models.Attempt{},
		active:      map[activeKey]string{},
		daily:       map[dailyKey]string{},
		progress:    map[progressKey]models.SubjectProgress{},
		applied:     map[string]bool{},
		engagement:  map[string]models.EngagementState{},
		assignments: map[string]models.WeeklyAssignment{},
		evaluations: map[string]models.Evaluation{},
	}
}

// clone copies every map. Stored values are never mutated in place, so
// copying the top level is enough.
func (s *state) clone() *state {
	out := newState()
	for k, v := range s.tests {
		out.tests[k] = v
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.emails {
		out.emails[k] = v
	}
	for k, v := range s.attempts {
		out.attempts[k] = v
	}
	for k, v := range s.active {
		out.active[k] = v
	}
	for k, v := range s.daily {
		out.daily[k] = v
	}
	for k, v := range s.progress {
		out.progress[k] = v
	}
	for k, v := range s.applied {
		out.applied[k] = v
	}
	for k, v := range s.engagement {
		out.engagement[k] = v
	}
	for k, v := range s.assignments {
		out.assignments[k] = v
	}
	for k, v := range s.evaluations {
		out.evaluations[k] = v
	}
	return out
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) Close() error { return nil }

type tx struct {
	st *state
}

func dayKey(t time.Time) string {
	return store.Day(t).Format("2006-01-02")
}

func (t *tx) LockUser(ctx context.Context, userID string) error {
	return nil
}

// ── Catalog ─────────────────────────────────────────────

func (t *tx) GetTestDefinition(ctx context.Context, testID string) (*models.TestDefinition, error) {
	def, ok := t.st.tests[testID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &def, nil
}

func (t *tx) ListActiveTests(ctx context.Context) ([]models.TestDefinition, error) {
	var out []models.TestDefinition
	for _, def := range t.st.tests {
		if def.IsActive {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpsertTestDefinition(ctx context.Context, def *models.TestDefinition) error {
	cp := *def
	cp.Questions = append([]models.QuestionRef(nil), def.Questions...)
	t.st.tests[def.ID] = cp
	return nil
}

// ── Users ───────────────────────────────────────────────

func (t *tx) InsertUser(ctx context.Context, u *models.User) error {
	if _, taken := t.st.emails[u.Email]; taken {
		return store.ErrDuplicate
	}
	if _, exists := t.st.users[u.ID]; exists {
		return store.ErrDuplicate
	}
	t.st.users[u.ID] = *u
	t.st.emails[u.Email] = u.ID
	return nil
}

func (t *tx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := t.st.emails[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.GetUser(ctx, id)
}

func (t *tx) GetUserTier(ctx context.Context, userID string) (models.Tier, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return u.Tier, nil
}

// ── Attempts ────────────────────────────────────────────

func (t *tx) InsertAttempt(ctx context.Context, a *models.Attempt) error {
	if _, exists := t.st.attempts[a.ID]; exists {
		return store.ErrDuplicate
	}
	ak := activeKey{a.UserID, a.TestID}
	if a.Status == models.AttemptInProgress {
		if _, taken := t.st.active[ak]; taken {
			return store.ErrDuplicate
		}
	}
	var dk dailyKey
	if a.IsDaily && a.DailyDate != nil {
		dk = dailyKey{a.UserID, dayKey(*a.DailyDate)}
		if _, taken := t.st.daily[dk]; taken {
			return store.ErrDuplicate
		}
		t.st.daily[dk] = a.ID
	}
	if a.Status == models.AttemptInProgress {
		t.st.active[ak] = a.ID
	}
	t.st.attempts[a.ID] = a.Clone()
	return nil
}

func (t *tx) GetAttempt(ctx context.Context, attemptID string, forUpdate bool) (*models.Attempt, error) {
	a, ok := t.st.attempts[attemptID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := a.Clone()
	return &cp, nil
}

func (t *tx) FindActiveAttempt(ctx context.Context, userID, testID string) (*models.Attempt, error) {
	id, ok := t.st.active[activeKey{userID, testID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.GetAttempt(ctx, id, false)
}

func (t *tx) FindDailyAttempt(ctx context.Context, userID string, day time.Time) (*models.Attempt, error) {
	id, ok := t.st.daily[dailyKey{userID, dayKey(day)}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.GetAttempt(ctx, id, false)
}

func (t *tx) SaveAnswer(ctx context.Context, attemptID, questionID, answer string) error {
	a, ok := t.st.attempts[attemptID]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != models.AttemptInProgress {
		return store.ErrStale
	}
	a = a.Clone()
	a.RecordedAnswers[questionID] = answer
	t.st.attempts[attemptID] = a
	return nil
}

func (t *tx) CompleteAttempt(ctx context.Context, c models.AttemptCompletion) error {
	a, ok := t.st.attempts[c.AttemptID]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != models.AttemptInProgress {
		return store.ErrStale
	}
	a = a.Clone()
	completedAt := c.CompletedAt
	correct, score, pct, passed, taken := c.CorrectAnswers, c.Score, c.ScorePercentage, c.Passed, c.TimeTakenSeconds
	a.Status = models.AttemptCompleted
	a.CompletedAt = &completedAt
	a.CorrectAnswers = &correct
	a.Score = &score
	a.ScorePercentage = &pct
	a.Passed = &passed
	a.TimeTakenSeconds = &taken
	a.RecordedAnswers = make(map[string]string, len(c.RecordedAnswers))
	for k, v := range c.RecordedAnswers {
		a.RecordedAnswers[k] = v
	}
	a.QuestionResults = append([]models.QuestionResult(nil), c.QuestionResults...)
	t.st.attempts[a.ID] = a
	delete(t.st.active, activeKey{a.UserID, a.TestID})
	return nil
}

func (t *tx) FirstCompletedAttemptSince(ctx context.Context, userID, testID string, assignedAt, until time.Time) (*models.Attempt, error) {
	var best *models.Attempt
	for _, a := range t.st.attempts {
		if a.UserID != userID || a.TestID != testID || a.Status != models.AttemptCompleted || a.CompletedAt == nil {
			continue
		}
		if a.CompletedAt.Before(assignedAt) || a.CompletedAt.After(until) {
			continue
		}
		if best == nil || a.CompletedAt.Before(*best.CompletedAt) {
			cp := a.Clone()
			best = &cp
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

// ── Progress ────────────────────────────────────────────

func (t *tx) GetSubjectProgress(ctx context.Context, userID, subjectArea string) (*models.SubjectProgress, error) {
	p, ok := t.st.progress[progressKey{userID, subjectArea}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := p.Clone()
	return &cp, nil
}

func (t *tx) InsertSubjectProgress(ctx context.Context, p *models.SubjectProgress) error {
	k := progressKey{p.UserID, p.SubjectArea}
	if _, exists := t.st.progress[k]; exists {
		return store.ErrDuplicate
	}
	p.Version = 1
	t.st.progress[k] = p.Clone()
	return nil
}

func (t *tx) UpdateSubjectProgress(ctx context.Context, p *models.SubjectProgress) error {
	k := progressKey{p.UserID, p.SubjectArea}
	cur, ok := t.st.progress[k]
	if !ok || cur.Version != p.Version {
		return store.ErrStale
	}
	p.Version++
	t.st.progress[k] = p.Clone()
	return nil
}

func (t *tx) ListSubjectProgress(ctx context.Context, userID string) ([]models.SubjectProgress, error) {
	out := []models.SubjectProgress{}
	for k, p := range t.st.progress {
		if k.userID == userID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectArea < out[j].SubjectArea })
	return out, nil
}

func (t *tx) MarkProgressApplied(ctx context.Context, attemptID, userID, subjectArea string, at time.Time) error {
	if t.st.applied[attemptID] {
		return store.ErrDuplicate
	}
	t.st.applied[attemptID] = true
	return nil
}

// ── Engagement ──────────────────────────────────────────

func (t *tx) GetEngagementState(ctx context.Context, userID string) (*models.EngagementState, error) {
	s, ok := t.st.engagement[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (t *tx) SaveEngagementState(ctx context.Context, s *models.EngagementState) error {
	cur, ok := t.st.engagement[s.UserID]
	switch {
	case s.Version == 0 && ok:
		return store.ErrStale
	case s.Version != 0 && (!ok || cur.Version != s.Version):
		return store.ErrStale
	}
	s.Version++
	t.st.engagement[s.UserID] = *s
	return nil
}

// ── Assignments ─────────────────────────────────────────

func (t *tx) InsertAssignment(ctx context.Context, a *models.WeeklyAssignment) error {
	if _, exists := t.st.assignments[a.ID]; exists {
		return store.ErrDuplicate
	}
	t.st.assignments[a.ID] = *a
	return nil
}

func (t *tx) GetAssignment(ctx context.Context, assignmentID string) (*models.WeeklyAssignment, error) {
	a, ok := t.st.assignments[assignmentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (t *tx) ListActiveAssignments(ctx context.Context, userID string, now time.Time) ([]models.WeeklyAssignment, error) {
	out := []models.WeeklyAssignment{}
	for _, a := range t.st.assignments {
		if a.UserID == userID && a.IsActive(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (t *tx) CompleteAssignment(ctx context.Context, assignmentID, attemptID string, at time.Time) error {
	a, ok := t.st.assignments[assignmentID]
	if !ok {
		return store.ErrNotFound
	}
	if a.IsCompleted {
		return store.ErrStale
	}
	a.IsCompleted = true
	a.CompletedAt = &at
	a.CompletedAttemptID = &attemptID
	t.st.assignments[assignmentID] = a
	return nil
}

func (t *tx) DeleteExpiredAssignments(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, a := range t.st.assignments {
		if !a.IsCompleted && a.ExpiresAt.Before(now) {
			delete(t.st.assignments, id)
			n++
		}
	}
	return n, nil
}

// ── Evaluations ─────────────────────────────────────────

func (t *tx) InsertEvaluation(ctx context.Context, e *models.Evaluation) error {
	if _, exists := t.st.evaluations[e.AttemptID]; exists {
		return store.ErrDuplicate
	}
	t.st.evaluations[e.AttemptID] = *e
	return nil
}

func (t *tx) GetEvaluation(ctx context.Context, attemptID string) (*models.Evaluation, error) {
	e, ok := t.st.evaluations[attemptID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}
