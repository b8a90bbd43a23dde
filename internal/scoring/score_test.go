package scoring

import (
	"testing"

	"github.com/examprep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionSet(correct ...string) []models.QuestionRef {
	qs := make([]models.QuestionRef, len(correct))
	for i, c := range correct {
		qs[i] = models.QuestionRef{
			QuestionID:    string(rune('a'+i)) + "1",
			CorrectAnswer: c,
		}
	}
	return qs
}

func TestScore_FourQuestionMix(t *testing.T) {
	qs := questionSet("A", "X", "C", "Y")
	answers := map[string]string{"a1": "A", "b1": "B", "c1": "C", "d1": "D"}

	for _, passing := range []int{40, 50, 60} {
		res, err := Score(qs, answers, passing)
		require.NoError(t, err)
		assert.Equal(t, 2, res.CorrectCount)
		assert.Equal(t, 50, res.Percentage)
		assert.Equal(t, 50 >= passing, res.Passed, "passing score %d", passing)
		assert.Equal(t, []models.QuestionResult{
			{QuestionID: "a1", IsCorrect: true},
			{QuestionID: "b1", IsCorrect: false},
			{QuestionID: "c1", IsCorrect: true},
			{QuestionID: "d1", IsCorrect: false},
		}, res.PerQuestion)
	}
}

func TestScore_ExactMatchOnly(t *testing.T) {
	qs := []models.QuestionRef{
		{QuestionID: "q1", CorrectAnswer: "E=mc²"},
		{QuestionID: "q2", CorrectAnswer: "b"},
		{QuestionID: "q3", CorrectAnswer: "paris"},
	}
	answers := map[string]string{
		"q1": "E=mc2",  // different rune
		"q2": "B",      // case differs
		"q3": " paris", // whitespace differs
	}

	res, err := Score(qs, answers, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CorrectCount)
	assert.Equal(t, 0, res.Percentage)
}

func TestScore_UnansweredIsIncorrect(t *testing.T) {
	qs := questionSet("A", "B", "C")

	res, err := Score(qs, map[string]string{"a1": "A"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 33, res.Percentage)
	assert.True(t, res.Passed)

	res, err = Score(qs, nil, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CorrectCount)
	assert.False(t, res.Passed)
}

func TestScore_IgnoresAnswersForUnknownQuestions(t *testing.T) {
	qs := questionSet("A")
	res, err := Score(qs, map[string]string{"a1": "A", "zz": "A"}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 100, res.Percentage)
	assert.Len(t, res.PerQuestion, 1)
}

func TestScore_Deterministic(t *testing.T) {
	qs := questionSet("A", "B", "C", "D", "E")
	answers := map[string]string{"a1": "A", "c1": "x", "e1": "E"}

	first, err := Score(qs, answers, 60)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Score(qs, answers, 60)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_PointWeights(t *testing.T) {
	qs := []models.QuestionRef{
		{QuestionID: "q1", CorrectAnswer: "A", PointWeight: 3},
		{QuestionID: "q2", CorrectAnswer: "B", PointWeight: 2},
		{QuestionID: "q3", CorrectAnswer: "C"},
	}
	res, err := Score(qs, map[string]string{"q1": "A", "q3": "C"}, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Points)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 67, res.Percentage)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		correct, total int
		want           int
	}{
		{0, 4, 0},
		{1, 8, 13}, // 12.5 rounds up
		{1, 3, 33},
		{2, 3, 67},
		{5, 8, 63},  // 62.5 rounds up
		{7, 8, 88},  // 87.5 rounds up
		{1, 200, 1}, // 0.5 rounds up
		{4, 4, 100},
		{0, 0, 0},
	}

	for _, tt := range tests {
		got := Percentage(tt.correct, tt.total)
		assert.Equal(t, tt.want, got, "Percentage(%d, %d)", tt.correct, tt.total)
	}
}

func TestScore_MalformedQuestionSet(t *testing.T) {
	tests := []struct {
		name      string
		questions []models.QuestionRef
		passing   int
	}{
		{"empty", nil, 50},
		{"missing id", []models.QuestionRef{{CorrectAnswer: "A"}}, 50},
		{"duplicate id", []models.QuestionRef{{QuestionID: "q", CorrectAnswer: "A"}, {QuestionID: "q", CorrectAnswer: "B"}}, 50},
		{"missing answer key", []models.QuestionRef{{QuestionID: "q"}}, 50},
		{"negative weight", []models.QuestionRef{{QuestionID: "q", CorrectAnswer: "A", PointWeight: -1}}, 50},
		{"passing score above 100", questionSet("A"), 101},
		{"passing score below 0", questionSet("A"), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Score(tt.questions, map[string]string{}, tt.passing)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, models.ErrInvalidQuestionSet)
		})
	}
}

func TestValidateDefinition_TotalMismatch(t *testing.T) {
	def := &models.TestDefinition{ID: "t1", Questions: questionSet("A", "B"), TotalQuestions: 3, PassingScore: 50}
	assert.ErrorIs(t, ValidateDefinition(def), models.ErrInvalidQuestionSet)

	def.TotalQuestions = 2
	assert.NoError(t, ValidateDefinition(def))
}
