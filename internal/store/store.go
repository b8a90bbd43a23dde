// Package store defines the transactional persistence port shared by the
// attempt, progress, engagement and evaluation services. Every write goes
// through InTx so multi-row transitions are all-or-nothing.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/examprep/backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a natural-key collision (active attempt, daily
	// attempt, evaluation per attempt, progress ledger entry).
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale reports a lost optimistic-version or compare-and-swap race.
	// Callers retry the whole transaction.
	ErrStale = errors.New("stale write")
)

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of operations available inside one transaction.
type Tx interface {
	// LockUser serialises transactions that read-then-write per-user
	// state without a natural unique key (daily attempt, weekly assignment).
	LockUser(ctx context.Context, userID string) error

	GetTestDefinition(ctx context.Context, testID string) (*models.TestDefinition, error)
	ListActiveTests(ctx context.Context) ([]models.TestDefinition, error)
	UpsertTestDefinition(ctx context.Context, t *models.TestDefinition) error

	// InsertUser fails with ErrDuplicate when the email is taken.
	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserTier(ctx context.Context, userID string) (models.Tier, error)

	// InsertAttempt fails with ErrDuplicate when the user already has an
	// in_progress attempt on the test, or a daily attempt on the same day.
	InsertAttempt(ctx context.Context, a *models.Attempt) error
	GetAttempt(ctx context.Context, attemptID string, forUpdate bool) (*models.Attempt, error)
	FindActiveAttempt(ctx context.Context, userID, testID string) (*models.Attempt, error)
	FindDailyAttempt(ctx context.Context, userID string, day time.Time) (*models.Attempt, error)
	// SaveAnswer fails with ErrStale unless the attempt is in_progress.
	SaveAnswer(ctx context.Context, attemptID, questionID, answer string) error
	// CompleteAttempt is the one-shot CAS on status; ErrStale if already completed.
	CompleteAttempt(ctx context.Context, c models.AttemptCompletion) error
	// FirstCompletedAttemptSince returns the earliest completed attempt of
	// testID by userID with assignedAt <= completed_at <= until.
	FirstCompletedAttemptSince(ctx context.Context, userID, testID string, assignedAt, until time.Time) (*models.Attempt, error)

	GetSubjectProgress(ctx context.Context, userID, subjectArea string) (*models.SubjectProgress, error)
	InsertSubjectProgress(ctx context.Context, p *models.SubjectProgress) error
	// UpdateSubjectProgress writes p if the stored version equals p.Version
	// and bumps it; ErrStale otherwise.
	UpdateSubjectProgress(ctx context.Context, p *models.SubjectProgress) error
	ListSubjectProgress(ctx context.Context, userID string) ([]models.SubjectProgress, error)
	// MarkProgressApplied records the dedupe key; ErrDuplicate on replays.
	MarkProgressApplied(ctx context.Context, attemptID, userID, subjectArea string, at time.Time) error

	GetEngagementState(ctx context.Context, userID string) (*models.EngagementState, error)
	// SaveEngagementState inserts (Version 0) or updates with a version check.
	SaveEngagementState(ctx context.Context, s *models.EngagementState) error

	InsertAssignment(ctx context.Context, a *models.WeeklyAssignment) error
	GetAssignment(ctx context.Context, assignmentID string) (*models.WeeklyAssignment, error)
	ListActiveAssignments(ctx context.Context, userID string, now time.Time) ([]models.WeeklyAssignment, error)
	// CompleteAssignment is a CAS on is_completed; ErrStale if already completed.
	CompleteAssignment(ctx context.Context, assignmentID, attemptID string, at time.Time) error
	DeleteExpiredAssignments(ctx context.Context, now time.Time) (int64, error)

	InsertEvaluation(ctx context.Context, e *models.Evaluation) error
	GetEvaluation(ctx context.Context, attemptID string) (*models.Evaluation, error)
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
