package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairsJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = `{"question":"Q","answer":"A"}`
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestQuestionSet(t *testing.T) {
	t.Run("fenced_five", func(t *testing.T) {
		raw := "Here are your questions:\n```json\n" + pairsJSON(5) + "\n```\nGood luck!"
		got, err := QuestionSet(raw, 5)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, QAPair{Question: "Q", Answer: "A"}, got[0])
	})

	t.Run("order_preserved", func(t *testing.T) {
		got, err := QuestionSet(`[{"question":"first","answer":"1"},{"question":"second","answer":"2"}]`, 2)
		require.NoError(t, err)
		assert.Equal(t, "first", got[0].Question)
		assert.Equal(t, "second", got[1].Question)
	})

	t.Run("extra_properties_tolerated", func(t *testing.T) {
		got, err := QuestionSet(`[{"question":"Q","answer":"A","difficulty":"easy"}]`, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("bracketed_count_in_prose", func(t *testing.T) {
		raw := "Here are the [5] questions:\n```json\n" + pairsJSON(5) + "\n```"
		got, err := QuestionSet(raw, 5)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("skips_arrays_failing_schema", func(t *testing.T) {
		raw := `Format: [{"q":"...","a":"..."}] Result: ` + pairsJSON(2)
		got, err := QuestionSet(raw, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("any_count_when_zero", func(t *testing.T) {
		got, err := QuestionSet(pairsJSON(3), 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	tests := []struct {
		name string
		raw  string
		n    int
	}{
		{"wrong_count", pairsJSON(4), 5},
		{"missing_answer", `[{"question":"Q"}]`, 1},
		{"empty_question", `[{"question":"","answer":"A"}]`, 1},
		{"non_string_answer", `[{"question":"Q","answer":42}]`, 1},
		{"not_objects", `["Q1","Q2"]`, 2},
		{"empty_array_open_count", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QuestionSet(tt.raw, tt.n)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}

	t.Run("no_array_passes_through", func(t *testing.T) {
		_, err := QuestionSet("I cannot help with that.", 5)
		assert.ErrorIs(t, err, ErrNoArrayFound)
	})
}

func TestParseEvaluation(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		got, err := ParseEvaluation(`{"ratings": 7, "feedback": "Good"}`)
		require.NoError(t, err)
		assert.Equal(t, &Evaluation{Ratings: 7, Feedback: "Good"}, got)
	})

	t.Run("fenced", func(t *testing.T) {
		got, err := ParseEvaluation("```json\n{\"ratings\": 9, \"feedback\": \"Clear and correct.\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, 9, got.Ratings)
	})

	t.Run("integral_float", func(t *testing.T) {
		got, err := ParseEvaluation(`{"ratings": 8.0, "feedback": "ok"}`)
		require.NoError(t, err)
		assert.Equal(t, 8, got.Ratings)
	})

	tests := []struct {
		name string
		raw  string
	}{
		{"fractional", `{"ratings": 7.5, "feedback": "ok"}`},
		{"out_of_range", `{"ratings": 11, "feedback": "ok"}`},
		{"negative", `{"ratings": -1, "feedback": "ok"}`},
		{"string_rating", `{"ratings": "7", "feedback": "ok"}`},
		{"missing_feedback", `{"ratings": 7}`},
		{"array_instead", `[{"ratings": 7, "feedback": "ok"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvaluation(tt.raw)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}

	t.Run("prose_is_invalid_json", func(t *testing.T) {
		_, err := ParseEvaluation(`Rating: {"ratings": 7, "feedback": "ok"}`)
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})
}

func TestSchemaDocuments(t *testing.T) {
	doc, err := Schema(QuestionSetSchema, 5)
	require.NoError(t, err)
	assert.Equal(t, "array", doc["type"])
	assert.Equal(t, 5, doc["minItems"])
	assert.Equal(t, 5, doc["maxItems"])
	items, ok := doc["items"].(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"question", "answer"}, items["required"])

	doc, err = Schema(EvaluationSchema, 0)
	require.NoError(t, err)
	assert.Equal(t, "object", doc["type"])
	assert.ElementsMatch(t, []any{"ratings", "feedback"}, doc["required"])

	_, err = Schema("resume", 0)
	assert.Error(t, err)
}
