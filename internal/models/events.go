package models

import "time"

type EventType string

const (
	EventTestSubmitted           EventType = "test-submitted"
	EventRecommendationRequested EventType = "recommendation-requested"
	EventAssignmentCompleted     EventType = "assignment-completed"
)

// Event is the envelope for every outbound side effect. Delivery is
// at-least-once; consumers dedupe on ID.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type TestSubmittedPayload struct {
	AttemptID       string           `json:"attempt_id"`
	UserID          string           `json:"user_id"`
	TestID          string           `json:"test_id"`
	Score           int              `json:"score"`
	Percentage      int              `json:"percentage"`
	QuestionResults []QuestionResult `json:"question_results"`
}

type RecommendationRequestedPayload struct {
	UserID           string   `json:"user_id"`
	ImprovementAreas []string `json:"improvement_areas"`
	Strengths        []string `json:"strengths"`
	SubjectArea      string   `json:"subject_area"`
}

type AssignmentCompletedPayload struct {
	AssignmentID string    `json:"assignment_id"`
	UserID       string    `json:"user_id"`
	TestID       string    `json:"test_id"`
	AttemptID    string    `json:"attempt_id"`
	CompletedAt  time.Time `json:"completed_at"`
}
