package models

import "time"

type Tier string

const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
)

var ValidTiers = map[Tier]bool{
	TierFree:    true,
	TierPremium: true,
}

// QuestionRef is one scored item of a TestDefinition. CorrectAnswer is never
// sent to clients; see QuestionView.
type QuestionRef struct {
	QuestionID    string   `json:"question_id" yaml:"question_id"`
	Prompt        string   `json:"prompt,omitempty" yaml:"prompt"`
	Choices       []string `json:"choices,omitempty" yaml:"choices"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	PointWeight   int      `json:"point_weight" yaml:"point_weight"`
}

// Weight returns the point weight, treating an unset weight as 1.
func (q QuestionRef) Weight() int {
	if q.PointWeight <= 0 {
		return 1
	}
	return q.PointWeight
}

// TestDefinition is read-only to the core once published.
type TestDefinition struct {
	ID              string        `json:"id" yaml:"id"`
	Title           string        `json:"title" yaml:"title"`
	SubjectArea     string        `json:"subject_area" yaml:"subject_area"`
	Questions       []QuestionRef `json:"questions" yaml:"questions"`
	TotalQuestions  int           `json:"total_questions" yaml:"total_questions"`
	PassingScore    int           `json:"passing_score" yaml:"passing_score"`
	TargetTier      *Tier         `json:"target_tier,omitempty" yaml:"target_tier"`
	DurationMinutes int           `json:"duration_minutes" yaml:"duration_minutes"`
	IsActive        bool          `json:"is_active" yaml:"is_active"`
	PublishedAt     time.Time     `json:"published_at" yaml:"published_at"`
}

// VisibleTo reports whether a user of the given tier may take the test.
func (t TestDefinition) VisibleTo(tier Tier) bool {
	return t.TargetTier == nil || *t.TargetTier == tier
}

type QuestionView struct {
	QuestionID string   `json:"question_id"`
	Prompt     string   `json:"prompt,omitempty"`
	Choices    []string `json:"choices,omitempty"`
	Points     int      `json:"points"`
}

// Views strips correct answers from the question set.
func (t TestDefinition) Views() []QuestionView {
	views := make([]QuestionView, 0, len(t.Questions))
	for _, q := range t.Questions {
		views = append(views, QuestionView{
			QuestionID: q.QuestionID,
			Prompt:     q.Prompt,
			Choices:    q.Choices,
			Points:     q.Weight(),
		})
	}
	return views
}

type TestSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	SubjectArea     string `json:"subject_area"`
	TotalQuestions  int    `json:"total_questions"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (t TestDefinition) Summary() TestSummary {
	return TestSummary{
		ID:              t.ID,
		Title:           t.Title,
		SubjectArea:     t.SubjectArea,
		TotalQuestions:  t.TotalQuestions,
		DurationMinutes: t.DurationMinutes,
	}
}
