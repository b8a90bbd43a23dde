// Package scoring grades a submitted answer map against a question set.
// Everything here is pure: identical inputs always produce identical output.
package scoring

import (
	"fmt"

	"github.com/examprep/backend/internal/models"
)

type Result struct {
	CorrectCount int
	Total        int
	// Points is the sum of point weights of correctly answered questions.
	Points      int
	Percentage  int
	Passed      bool
	PerQuestion []models.QuestionResult
}

// Score grades answers against questions. Comparison is exact string
// equality; unanswered questions are incorrect. A malformed question set
// is an error, never a silently wrong score.
func Score(questions []models.QuestionRef, answers map[string]string, passingScore int) (*Result, error) {
	if err := Validate(questions, passingScore); err != nil {
		return nil, err
	}

	res := &Result{
		Total:       len(questions),
		PerQuestion: make([]models.QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		given, answered := answers[q.QuestionID]
		correct := answered && given == q.CorrectAnswer
		if correct {
			res.CorrectCount++
			res.Points += q.Weight()
		}
		res.PerQuestion = append(res.PerQuestion, models.QuestionResult{
			QuestionID: q.QuestionID,
			IsCorrect:  correct,
		})
	}

	res.Percentage = Percentage(res.CorrectCount, res.Total)
	res.Passed = res.Percentage >= passingScore
	return res, nil
}

// Percentage returns round(correct/total*100) with halves rounded up.
// Integer arithmetic keeps 0.5 boundaries exact.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (correct*200 + total) / (2 * total)
}

// Validate checks that a question set can be scored.
func Validate(questions []models.QuestionRef, passingScore int) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", models.ErrInvalidQuestionSet)
	}
	if passingScore < 0 || passingScore > 100 {
		return fmt.Errorf("%w: passing score %d out of range", models.ErrInvalidQuestionSet, passingScore)
	}
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.QuestionID == "" {
			return fmt.Errorf("%w: question %d has no id", models.ErrInvalidQuestionSet, i)
		}
		if seen[q.QuestionID] {
			return fmt.Errorf("%w: duplicate question id %q", models.ErrInvalidQuestionSet, q.QuestionID)
		}
		if q.CorrectAnswer == "" {
			return fmt.Errorf("%w: question %q has no correct answer", models.ErrInvalidQuestionSet, q.QuestionID)
		}
		if q.PointWeight < 0 {
			return fmt.Errorf("%w: question %q has negative weight", models.ErrInvalidQuestionSet, q.QuestionID)
		}
		seen[q.QuestionID] = true
	}
	return nil
}

// ValidateDefinition also checks the declared total against the question list.
func ValidateDefinition(t *models.TestDefinition) error {
	if t.TotalQuestions != len(t.Questions) {
		return fmt.Errorf("%w: test %s declares %d questions but has %d",
			models.ErrInvalidQuestionSet, t.ID, t.TotalQuestions, len(t.Questions))
	}
	return Validate(t.Questions, t.PassingScore)
}
