package models

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

type QuestionResult struct {
	QuestionID string `json:"question_id"`
	IsCorrect  bool   `json:"is_correct"`
}

// Attempt is one user's sitting of one TestDefinition. Fields behind
// pointers stay nil until the attempt is completed.
type Attempt struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	TestID           string            `json:"test_id"`
	SubjectArea      string            `json:"subject_area"`
	Status           AttemptStatus     `json:"status"`
	IsDaily          bool              `json:"is_daily"`
	DailyDate        *time.Time        `json:"daily_date,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	TotalQuestions   int               `json:"total_questions"`
	CorrectAnswers   *int              `json:"correct_answers,omitempty"`
	Score            *int              `json:"score,omitempty"`
	ScorePercentage  *int              `json:"score_percentage,omitempty"`
	Passed           *bool             `json:"passed,omitempty"`
	TimeTakenSeconds *int              `json:"time_taken_seconds,omitempty"`
	RecordedAnswers  map[string]string `json:"recorded_answers"`
	QuestionResults  []QuestionResult  `json:"question_results,omitempty"`
}

func (a *Attempt) IsCompleted() bool {
	return a.Status == AttemptCompleted
}

// Clone returns a deep copy so callers never share the answers map.
func (a Attempt) Clone() Attempt {
	out := a
	out.RecordedAnswers = make(map[string]string, len(a.RecordedAnswers))
	for k, v := range a.RecordedAnswers {
		out.RecordedAnswers[k] = v
	}
	if a.QuestionResults != nil {
		out.QuestionResults = append([]QuestionResult(nil), a.QuestionResults...)
	}
	return out
}

// AttemptCompletion is the one-shot in_progress → completed transition.
type AttemptCompletion struct {
	AttemptID        string
	CompletedAt      time.Time
	CorrectAnswers   int
	Score            int
	ScorePercentage  int
	Passed           bool
	TimeTakenSeconds int
	RecordedAnswers  map[string]string
	QuestionResults  []QuestionResult
}

// ── API Request/Response Types ────────────────────────────

type StartAttemptRequest struct {
	IsDaily bool `json:"is_daily"`
}

type StartAttemptResponse struct {
	AttemptID       string         `json:"attempt_id"`
	TestID          string         `json:"test_id"`
	Status          AttemptStatus  `json:"status"`
	Questions       []QuestionView `json:"questions"`
	DurationMinutes int            `json:"duration_minutes"`
	StartedAt       time.Time      `json:"started_at"`
	Resumed         bool           `json:"resumed"`
}

type RecordAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

type SubmitAttemptRequest struct {
	Answers          map[string]string `json:"answers"`
	TimeTakenSeconds int               `json:"time_taken_seconds" validate:"gte=0"`
}

// ScoredResult is the SubmitAttempt response. Replayed is set when the
// attempt had already been completed and the stored result is returned.
type ScoredResult struct {
	AttemptID       string           `json:"attempt_id"`
	Score           int              `json:"score"`
	Percentage      int              `json:"percentage"`
	CorrectAnswers  int              `json:"correct_answers"`
	TotalQuestions  int              `json:"total_questions"`
	Passed          bool             `json:"passed"`
	QuestionResults []QuestionResult `json:"question_results"`
	Replayed        bool             `json:"replayed"`
}

// ResultFromAttempt rebuilds the result of a completed attempt.
func ResultFromAttempt(a *Attempt) *ScoredResult {
	res := &ScoredResult{
		AttemptID:       a.ID,
		TotalQuestions:  a.TotalQuestions,
		QuestionResults: a.QuestionResults,
	}
	if a.Score != nil {
		res.Score = *a.Score
	}
	if a.ScorePercentage != nil {
		res.Percentage = *a.ScorePercentage
	}
	if a.CorrectAnswers != nil {
		res.CorrectAnswers = *a.CorrectAnswers
	}
	if a.Passed != nil {
		res.Passed = *a.Passed
	}
	if res.QuestionResults == nil {
		res.QuestionResults = []QuestionResult{}
	}
	return res
}
