// Package postgres implements store.Store on PostgreSQL via lib/pq.
//
// Natural-key uniqueness (one in_progress attempt per user and test, one
// daily attempt per user and day, one evaluation per attempt) is enforced
// by unique indexes. Inserts use ON CONFLICT DO NOTHING so a collision is
// reported as store.ErrDuplicate without aborting the transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{tx: sqlTx}); err != nil {
		return classify(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// classify maps serialization failures and deadlocks to store.ErrStale so
// store.WithRetry re-runs them, and malformed ids to store.ErrNotFound.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return fmt.Errorf("%w: %v", store.ErrStale, err)
	case "22P02":
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case "23505":
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

type tx struct {
	tx *sql.Tx
}

func noRows(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return classify(fmt.Errorf("%s: %w", what, err))
}

func expectOne(res sql.Result, err error, what string, none error) error {
	if err != nil {
		return classify(fmt.Errorf("%s: %w", what, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return none
	}
	return nil
}

func (t *tx) LockUser(ctx context.Context, userID string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return classify(fmt.Errorf("lock user: %w", err))
	}
	return nil
}

// ── Catalog ─────────────────────────────────────────────

const testColumns = `id, title, subject_area, questions, total_questions, passing_score,
	target_tier, duration_minutes, is_active, published_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (*models.TestDefinition, error) {
	var def models.TestDefinition
	var questions []byte
	var tier sql.NullString
	if err := row.Scan(&def.ID, &def.Title, &def.SubjectArea, &questions, &def.TotalQuestions,
		&def.PassingScore, &tier, &def.DurationMinutes, &def.IsActive, &def.PublishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &def.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", def.ID, err)
	}
	if tier.Valid {
		tt := models.Tier(tier.String)
		def.TargetTier = &tt
	}
	return &def, nil
}

func (t *tx) GetTestDefinition(ctx context.Context, testID string) (*models.TestDefinition, error) {
	def, err := scanTest(t.tx.QueryRowContext(ctx,
		`SELECT `+testColumns+` FROM test_definitions WHERE id = $1`, testID))
	if err != nil {
		return nil, noRows(err, "get test definition")
	}
	return def, nil
}

func (t *tx) ListActiveTests(ctx context.Context) ([]models.TestDefinition, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+testColumns+` FROM test_definitions WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, classify(fmt.Errorf("list active tests: %w", err))
	}
	defer rows.Close()

	var out []models.TestDefinition
	for rows.Next() {
		def, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test definition: %w", err)
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

func (t *tx) UpsertTestDefinition(ctx context.Context, def *models.TestDefinition) error {
	questions, err := json.Marshal(def.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	var tier *string
	if def.TargetTier != nil {
		s := string(*def.TargetTier)
		tier = &s
	}
	publishedAt := def.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now().UTC()
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO test_definitions (`+testColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		    title = EXCLUDED.title, subject_area = EXCLUDED.subject_area,
		    questions = EXCLUDED.questions, total_questions = EXCLUDED.total_questions,
		    passing_score = EXCLUDED.passing_score, target_tier = EXCLUDED.target_tier,
		    duration_minutes = EXCLUDED.duration_minutes, is_active = EXCLUDED.is_active`,
		def.ID, def.Title, def.SubjectArea, string(questions), def.TotalQuestions,
		def.PassingScore, tier, def.DurationMinutes, def.IsActive, publishedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("upsert test definition: %w", err))
	}
	return nil
}

// ── Users ───────────────────────────────────────────────

const userColumns = `id, email, name, password, tier, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var tier string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &tier, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Tier = models.Tier(tier)
	return &u, nil
}

func (t *tx) InsertUser(ctx context.Context, u *models.User) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING`,
		u.ID, u.Email, u.Name, u.Password, string(u.Tier), u.CreatedAt, u.UpdatedAt,
	)
	return expectOne(res, err, "insert user", store.ErrDuplicate)
}

func (t *tx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, noRows(err, "get user")
	}
	return u, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, noRows(err, "get user by email")
	}
	return u, nil
}

func (t *tx) GetUserTier(ctx context.Context, userID string) (models.Tier, error) {
	var tier string
	err := t.tx.QueryRowContext(ctx, `SELECT tier FROM users WHERE id = $1`, userID).Scan(&tier)
	if err != nil {
		return "", noRows(err, "get user tier")
	}
	return models.Tier(tier), nil
}

// ── Attempts ────────────────────────────────────────────

const attemptColumns = `id, user_id, test_id, subject_area, status, is_daily, daily_date,
	started_at, completed_at, total_questions, correct_answers, score, score_percentage,
	passed, time_taken_seconds, recorded_answers, question_results`

func scanAttempt(row rowScanner) (*models.Attempt, error) {
	var a models.Attempt
	var dailyDate, completedAt sql.NullTime
	var correct, score, pct, taken sql.NullInt64
	var passed sql.NullBool
	var answers, results []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.TestID, &a.SubjectArea, &a.Status, &a.IsDaily, &dailyDate,
		&a.StartedAt, &completedAt, &a.TotalQuestions, &correct, &score, &pct,
		&passed, &taken, &answers, &results); err != nil {
		return nil, err
	}
	if dailyDate.Valid {
		d := dailyDate.Time
		a.DailyDate = &d
	}
	if completedAt.Valid {
		c := completedAt.Time
		a.CompletedAt = &c
	}
	a.CorrectAnswers = intPtr(correct)
	a.Score = intPtr(score)
	a.ScorePercentage = intPtr(pct)
	a.TimeTakenSeconds = intPtr(taken)
	if passed.Valid {
		p := passed.Bool
		a.Passed = &p
	}
	a.RecordedAnswers = map[string]string{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.RecordedAnswers); err != nil {
			return nil, fmt.Errorf("decode recorded answers of %s: %w", a.ID, err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &a.QuestionResults); err != nil {
			return nil, fmt.Errorf("decode question results of %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func (t *tx) InsertAttempt(ctx context.Context, a *models.Attempt) error {
	answers, err := json.Marshal(a.RecordedAnswers)
	if err != nil {
		return fmt.Errorf("encode recorded answers: %w", err)
	}
	var dailyDate *time.Time
	if a.IsDaily && a.DailyDate != nil {
		d := store.Day(*a.DailyDate)
		dailyDate = &d
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, test_id, subject_area, status, is_daily, daily_date,
		                       started_at, total_questions, recorded_answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT DO NOTHING`,
		a.ID, a.UserID, a.TestID, a.SubjectArea, a.Status, a.IsDaily, dailyDate,
		a.StartedAt, a.TotalQuestions, string(answers),
	)
	return expectOne(res, err, "insert attempt", store.ErrDuplicate)
}

func (t *tx) GetAttempt(ctx context.Context, attemptID string, forUpdate bool) (*models.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAttempt(t.tx.QueryRowContext(ctx, query, attemptID))
	if err != nil {
		return nil, noRows(err, "get attempt")
	}
	return a, nil
}

func (t *tx) FindActiveAttempt(ctx context.Context, userID, testID string) (*models.Attempt, error) {
	a, err := scanAttempt(t.tx.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1 AND test_id = $2 AND status = 'in_progress'`,
		userID, testID))
	if err != nil {
		return nil, noRows(err, "find active attempt")
	}
	return a, nil
}

func (t *tx) FindDailyAttempt(ctx context.Context, userID string, day time.Time) (*models.Attempt, error) {
	a, err := scanAttempt(t.tx.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1 AND is_daily AND daily_date = $2`,
		userID, store.Day(day)))
	if err != nil {
		return nil, noRows(err, "find daily attempt")
	}
	return a, nil
}

func (t *tx) SaveAnswer(ctx context.Context, attemptID, questionID, answer string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE attempts
		 SET recorded_answers = recorded_answers || jsonb_build_object($2::text, $3::text)
		 WHERE id = $1 AND status = 'in_progress'`,
		attemptID, questionID, answer,
	)
	return expectOne(res, err, "save answer", store.ErrStale)
}

func (t *tx) CompleteAttempt(ctx context.Context, c models.AttemptCompletion) error {
	answers, err := json.Marshal(c.RecordedAnswers)
	if err != nil {
		return fmt.Errorf("encode recorded answers: %w", err)
	}
	results, err := json.Marshal(c.QuestionResults)
	if err != nil {
		return fmt.Errorf("encode question results: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE attempts SET
		    status = 'completed', completed_at = $2, correct_answers = $3, score = $4,
		    score_percentage = $5, passed = $6, time_taken_seconds = $7,
		    recorded_answers = $8, question_results = $9
		 WHERE id = $1 AND status = 'in_progress'`,
		c.AttemptID, c.CompletedAt, c.CorrectAnswers, c.Score,
		c.ScorePercentage, c.Passed, c.TimeTakenSeconds,
		string(answers), string(results),
	)
	return expectOne(res, err, "complete attempt", store.ErrStale)
}

func (t *tx) FirstCompletedAttemptSince(ctx context.Context, userID, testID string, assignedAt, until time.Time) (*models.Attempt, error) {
	a, err := scanAttempt(t.tx.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1 AND test_id = $2 AND status = 'completed'
		   AND completed_at >= $3 AND completed_at <= $4
		 ORDER BY completed_at ASC
		 LIMIT 1`,
		userID, testID, assignedAt, until))
	if err != nil {
		return nil, noRows(err, "find completed attempt")
	}
	return a, nil
}

// ── Progress ────────────────────────────────────────────

const progressColumns = `user_id, subject_area, total_tests_taken, total_questions, correct_answers,
	average_score, weak_areas, strong_areas, last_test_date, version`

func scanProgress(row rowScanner) (*models.SubjectProgress, error) {
	var p models.SubjectProgress
	if err := row.Scan(&p.UserID, &p.SubjectArea, &p.TotalTestsTaken, &p.TotalQuestions, &p.CorrectAnswers,
		&p.AverageScore, pq.Array(&p.WeakAreas), pq.Array(&p.StrongAreas), &p.LastTestDate, &p.Version); err != nil {
		return nil, err
	}
	if p.WeakAreas == nil {
		p.WeakAreas = []string{}
	}
	if p.StrongAreas == nil {
		p.StrongAreas = []string{}
	}
	return &p, nil
}

func (t *tx) GetSubjectProgress(ctx context.Context, userID, subjectArea string) (*models.SubjectProgress, error) {
	p, err := scanProgress(t.tx.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM subject_progress WHERE user_id = $1 AND subject_area = $2`,
		userID, subjectArea))
	if err != nil {
		return nil, noRows(err, "get subject progress")
	}
	return p, nil
}

func (t *tx) InsertSubjectProgress(ctx context.Context, p *models.SubjectProgress) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO subject_progress (`+progressColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		 ON CONFLICT DO NOTHING`,
		p.UserID, p.SubjectArea, p.TotalTestsTaken, p.TotalQuestions, p.CorrectAnswers,
		p.AverageScore, pq.Array(nonNil(p.WeakAreas)), pq.Array(nonNil(p.StrongAreas)), p.LastTestDate,
	)
	if err := expectOne(res, err, "insert subject progress", store.ErrDuplicate); err != nil {
		return err
	}
	p.Version = 1
	return nil
}

func (t *tx) UpdateSubjectProgress(ctx context.Context, p *models.SubjectProgress) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE subject_progress SET
		    total_tests_taken = $3, total_questions = $4, correct_answers = $5,
		    average_score = $6, weak_areas = $7, strong_areas = $8, last_test_date = $9,
		    version = version + 1
		 WHERE user_id = $1 AND subject_area = $2 AND version = $10`,
		p.UserID, p.SubjectArea, p.TotalTestsTaken, p.TotalQuestions, p.CorrectAnswers,
		p.AverageScore, pq.Array(nonNil(p.WeakAreas)), pq.Array(nonNil(p.StrongAreas)), p.LastTestDate,
		p.Version,
	)
	if err := expectOne(res, err, "update subject progress", store.ErrStale); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (t *tx) ListSubjectProgress(ctx context.Context, userID string) ([]models.SubjectProgress, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM subject_progress WHERE user_id = $1 ORDER BY subject_area`,
		userID)
	if err != nil {
		return nil, classify(fmt.Errorf("list subject progress: %w", err))
	}
	defer rows.Close()

	out := []models.SubjectProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject progress: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (t *tx) MarkProgressApplied(ctx context.Context, attemptID, userID, subjectArea string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO progress_applications (attempt_id, user_id, subject_area, applied_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		attemptID, userID, subjectArea, at,
	)
	return expectOne(res, err, "mark progress applied", store.ErrDuplicate)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ── Engagement ──────────────────────────────────────────

func (t *tx) GetEngagementState(ctx context.Context, userID string) (*models.EngagementState, error) {
	var s models.EngagementState
	var last sql.NullTime
	err := t.tx.QueryRowContext(ctx,
		`SELECT user_id, daily_streak, longest_streak, last_daily_test_at, version
		 FROM engagement_state WHERE user_id = $1`,
		userID,
	).Scan(&s.UserID, &s.DailyStreak, &s.LongestStreak, &last, &s.Version)
	if err != nil {
		return nil, noRows(err, "get engagement state")
	}
	if last.Valid {
		l := last.Time
		s.LastDailyTestAt = &l
	}
	return &s, nil
}

func (t *tx) SaveEngagementState(ctx context.Context, s *models.EngagementState) error {
	var res sql.Result
	var err error
	if s.Version == 0 {
		res, err = t.tx.ExecContext(ctx,
			`INSERT INTO engagement_state (user_id, daily_streak, longest_streak, last_daily_test_at, version)
			 VALUES ($1, $2, $3, $4, 1)
			 ON CONFLICT (user_id) DO NOTHING`,
			s.UserID, s.DailyStreak, s.LongestStreak, s.LastDailyTestAt,
		)
	} else {
		res, err = t.tx.ExecContext(ctx,
			`UPDATE engagement_state SET
			    daily_streak = $2, longest_streak = $3, last_daily_test_at = $4,
			    version = version + 1
			 WHERE user_id = $1 AND version = $5`,
			s.UserID, s.DailyStreak, s.LongestStreak, s.LastDailyTestAt, s.Version,
		)
	}
	if err := expectOne(res, err, "save engagement state", store.ErrStale); err != nil {
		return err
	}
	s.Version++
	return nil
}

// ── Assignments ─────────────────────────────────────────

const assignmentColumns = `id, user_id, test_id, assigned_at, expires_at, is_completed,
	completed_at, completed_attempt_id`

func scanAssignment(row rowScanner) (*models.WeeklyAssignment, error) {
	var a models.WeeklyAssignment
	var completedAt sql.NullTime
	var attemptID sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &a.TestID, &a.AssignedAt, &a.ExpiresAt, &a.IsCompleted,
		&completedAt, &attemptID); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		c := completedAt.Time
		a.CompletedAt = &c
	}
	if attemptID.Valid {
		id := attemptID.String
		a.CompletedAttemptID = &id
	}
	return &a, nil
}

func (t *tx) InsertAssignment(ctx context.Context, a *models.WeeklyAssignment) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO weekly_assignments (id, user_id, test_id, assigned_at, expires_at, is_completed)
		 VALUES ($1, $2, $3, $4, $5, FALSE)
		 ON CONFLICT DO NOTHING`,
		a.ID, a.UserID, a.TestID, a.AssignedAt, a.ExpiresAt,
	)
	return expectOne(res, err, "insert assignment", store.ErrDuplicate)
}

func (t *tx) GetAssignment(ctx context.Context, assignmentID string) (*models.WeeklyAssignment, error) {
	a, err := scanAssignment(t.tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM weekly_assignments WHERE id = $1`, assignmentID))
	if err != nil {
		return nil, noRows(err, "get assignment")
	}
	return a, nil
}

func (t *tx) ListActiveAssignments(ctx context.Context, userID string, now time.Time) ([]models.WeeklyAssignment, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM weekly_assignments
		 WHERE user_id = $1 AND NOT is_completed AND expires_at >= $2
		 ORDER BY assigned_at`,
		userID, now)
	if err != nil {
		return nil, classify(fmt.Errorf("list active assignments: %w", err))
	}
	defer rows.Close()

	out := []models.WeeklyAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (t *tx) CompleteAssignment(ctx context.Context, assignmentID, attemptID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE weekly_assignments
		 SET is_completed = TRUE, completed_at = $2, completed_attempt_id = $3
		 WHERE id = $1 AND NOT is_completed`,
		assignmentID, at, attemptID,
	)
	return expectOne(res, err, "complete assignment", store.ErrStale)
}

func (t *tx) DeleteExpiredAssignments(ctx context.Context, now time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM weekly_assignments WHERE NOT is_completed AND expires_at < $1`, now)
	if err != nil {
		return 0, classify(fmt.Errorf("delete expired assignments: %w", err))
	}
	return res.RowsAffected()
}

// ── Evaluations ─────────────────────────────────────────

func (t *tx) InsertEvaluation(ctx context.Context, e *models.Evaluation) error {
	feedback, err := json.Marshal(e.DetailedFeedback)
	if err != nil {
		return fmt.Errorf("encode detailed feedback: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO evaluations (id, attempt_id, user_id, overall_score, detailed_feedback,
		                          improvement_areas, strengths, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		e.ID, e.AttemptID, e.UserID, e.OverallScore, string(feedback),
		pq.Array(nonNil(e.ImprovementAreas)), pq.Array(nonNil(e.Strengths)), e.CreatedAt,
	)
	return expectOne(res, err, "insert evaluation", store.ErrDuplicate)
}

func (t *tx) GetEvaluation(ctx context.Context, attemptID string) (*models.Evaluation, error) {
	var e models.Evaluation
	var feedback []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, attempt_id, user_id, overall_score, detailed_feedback,
		        improvement_areas, strengths, created_at
		 FROM evaluations WHERE attempt_id = $1`,
		attemptID,
	).Scan(&e.ID, &e.AttemptID, &e.UserID, &e.OverallScore, &feedback,
		pq.Array(&e.ImprovementAreas), pq.Array(&e.Strengths), &e.CreatedAt)
	if err != nil {
		return nil, noRows(err, "get evaluation")
	}
	if len(feedback) > 0 {
		if err := json.Unmarshal(feedback, &e.DetailedFeedback); err != nil {
			return nil, fmt.Errorf("decode detailed feedback: %w", err)
		}
	}
	return &e, nil
}
