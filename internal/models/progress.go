package models

import "time"

// SubjectProgress holds running per-user-per-subject statistics.
// AverageScore is an incremental mean, never recomputed from history.
type SubjectProgress struct {
	UserID          string    `json:"user_id"`
	SubjectArea     string    `json:"subject_area"`
	TotalTestsTaken int       `json:"total_tests_taken"`
	TotalQuestions  int       `json:"total_questions"`
	CorrectAnswers  int       `json:"correct_answers"`
	AverageScore    float64   `json:"average_score"`
	WeakAreas       []string  `json:"weak_areas"`
	StrongAreas     []string  `json:"strong_areas"`
	LastTestDate    time.Time `json:"last_test_date"`
	Version         int64     `json:"-"`
}

func (p SubjectProgress) Clone() SubjectProgress {
	out := p
	out.WeakAreas = append([]string{}, p.WeakAreas...)
	out.StrongAreas = append([]string{}, p.StrongAreas...)
	return out
}

// EngagementState is the per-user daily streak record.
type EngagementState struct {
	UserID          string     `json:"user_id"`
	DailyStreak     int        `json:"daily_streak"`
	LongestStreak   int        `json:"longest_streak"`
	LastDailyTestAt *time.Time `json:"last_daily_test_at,omitempty"`
	Version         int64      `json:"-"`
}

type WeeklyAssignment struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	TestID             string     `json:"test_id"`
	AssignedAt         time.Time  `json:"assigned_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	IsCompleted        bool       `json:"is_completed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CompletedAttemptID *string    `json:"completed_attempt_id,omitempty"`
}

// IsActive reports whether the assignment is neither completed nor expired.
func (w WeeklyAssignment) IsActive(now time.Time) bool {
	return !w.IsCompleted && !w.ExpiresAt.Before(now)
}

// ── API Request/Response Types ────────────────────────────

type ProgressResponse struct {
	Subjects []SubjectProgress `json:"subjects"`
}

// ApplyCompletionRequest names a completed attempt whose progress
// contribution should be applied if it has not been already.
type ApplyCompletionRequest struct {
	AttemptID string `json:"attempt_id" validate:"required"`
}

type CreateAssignmentRequest struct {
	TestID string `json:"test_id"`
}

type AssignmentsResponse struct {
	Assignments []WeeklyAssignment `json:"assignments"`
}

type DailyTestResponse struct {
	Test        TestSummary `json:"test"`
	AttemptID   *string     `json:"attempt_id,omitempty"`
	Started     bool        `json:"started"`
	Completed   bool        `json:"completed"`
	DailyStreak int         `json:"daily_streak"`
}
