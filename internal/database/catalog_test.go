package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
	"github.com/examprep/backend/internal/store/memory"
)

const sampleCatalog = `
tests:
  - id: algebra-1
    title: Algebra Basics
    subject_area: math
    passing_score: 60
    duration_minutes: 20
    is_active: true
    questions:
      - question_id: q1
        prompt: "2 + 2?"
        choices: ["3", "4"]
        correct_answer: "4"
      - question_id: q2
        prompt: "3 * 3?"
        correct_answer: "9"
        point_weight: 2
  - id: premium-geo
    title: Geometry Deep Dive
    subject_area: math
    passing_score: 70
    target_tier: PREMIUM
    is_active: true
    questions:
      - question_id: g1
        correct_answer: "90"
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Tests, 2)

	assert.Equal(t, 2, c.Tests[0].TotalQuestions)
	assert.Nil(t, c.Tests[0].TargetTier)
	assert.Equal(t, 2, c.Tests[0].Questions[1].PointWeight)
	require.NotNil(t, c.Tests[1].TargetTier)
	assert.Equal(t, models.TierPremium, *c.Tests[1].TargetTier)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "tests:\n  - id: a\n    colour: red\n"},
		{"missing id", "tests:\n  - title: x\n    passing_score: 50\n    questions:\n      - question_id: q\n        correct_answer: A\n"},
		{"duplicate id", "tests:\n  - id: a\n    questions: [{question_id: q, correct_answer: A}]\n  - id: a\n    questions: [{question_id: q, correct_answer: A}]\n"},
		{"bad tier", "tests:\n  - id: a\n    target_tier: GOLD\n    questions: [{question_id: q, correct_answer: A}]\n"},
		{"no questions", "tests:\n  - id: a\n    passing_score: 50\n"},
		{"total mismatch", "tests:\n  - id: a\n    total_questions: 3\n    questions: [{question_id: q, correct_answer: A}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestImportCatalog_Upserts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	require.NoError(t, ImportCatalog(ctx, s, c))
	c.Tests[0].Title = "Algebra Basics v2"
	require.NoError(t, ImportCatalog(ctx, s, c))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		active, err := tx.ListActiveTests(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		def, err := tx.GetTestDefinition(ctx, "algebra-1")
		require.NoError(t, err)
		assert.Equal(t, "Algebra Basics v2", def.Title)
		return nil
	}))
}
