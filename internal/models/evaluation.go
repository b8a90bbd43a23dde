package models

import "time"

// FeedbackBag is an open-ended key/value payload. Values are JSON
// primitives, arrays or objects; only the top-level Evaluation fields are typed.
type FeedbackBag map[string]any

// Evaluation is externally computed feedback, 1:1 with a completed Attempt.
type Evaluation struct {
	ID               string      `json:"id"`
	AttemptID        string      `json:"attempt_id"`
	UserID           string      `json:"user_id"`
	OverallScore     float64     `json:"overall_score"`
	DetailedFeedback FeedbackBag `json:"detailed_feedback"`
	ImprovementAreas []string    `json:"improvement_areas"`
	Strengths        []string    `json:"strengths"`
	CreatedAt        time.Time   `json:"created_at"`
}

type RecordEvaluationRequest struct {
	AttemptID        string      `json:"attempt_id" validate:"required"`
	OverallScore     float64     `json:"overall_score" validate:"gte=0,lte=100"`
	DetailedFeedback FeedbackBag `json:"detailed_feedback"`
	ImprovementAreas []string    `json:"improvement_areas" validate:"dive,required"`
	Strengths        []string    `json:"strengths" validate:"dive,required"`
}
