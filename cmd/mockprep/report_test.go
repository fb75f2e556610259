package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/interview"
)

func TestRenderReport(t *testing.T) {
	iv := &database.Interview{
		ID:         "iv-1",
		Position:   "Go Developer",
		Experience: 4,
		TechStack:  "Go",
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("with_answers", func(t *testing.T) {
		answers := []database.UserAnswer{
			{Question: "What is a goroutine?", UserAns: "A thread", CorrectAns: "Green thread", Feedback: "Close", Rating: 6},
			{Question: "What is a channel?", UserAns: "A pipe", CorrectAns: "Typed conduit", Feedback: "Good", Rating: 9},
		}
		var buf bytes.Buffer
		renderReport(&buf, &interview.Report{
			Interview:     iv,
			Answers:       answers,
			OverallRating: interview.OverallRating(answers),
			HasFeedback:   true,
		})
		out := buf.String()
		assert.Contains(t, out, "Go Developer")
		assert.Contains(t, out, "7.5/10")
		assert.Contains(t, out, "What is a goroutine?")
		assert.Contains(t, out, "9/10")
		assert.Equal(t, 1, strings.Count(out, "Overall rating:"))
	})

	t.Run("no_answers", func(t *testing.T) {
		var buf bytes.Buffer
		renderReport(&buf, &interview.Report{Interview: iv, OverallRating: "0.0"})
		assert.Contains(t, buf.String(), "No answers recorded yet.")
		assert.NotContains(t, buf.String(), "Overall rating:")
	})
}

func TestStyleRating(t *testing.T) {
	for _, r := range []int{0, 3, 5, 7, 10} {
		assert.Contains(t, styleRating(r), "/10")
	}
}
