package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/metrics"
	"github.com/snarg/mockprep/internal/normalize"
	"github.com/snarg/mockprep/internal/prompts"
)

// rawLogLimit bounds how much of a rejected model reply is logged.
const rawLogLimit = 500

// CreateInterview generates a question set for in and stores it. Nothing is
// stored when generation or normalization fails.
func (s *Service) CreateInterview(ctx context.Context, userID string, in Input) (*database.Interview, error) {
	in = in.trimmed()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	questions, err := s.generateQuestions(ctx, in)
	if err != nil {
		return nil, err
	}

	iv := &database.Interview{
		ID:          uuid.NewString(),
		UserID:      userID,
		Position:    in.Position,
		Description: in.Description,
		Experience:  in.Experience,
		TechStack:   in.TechStack,
		Questions:   questions,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertInterview(ctx, iv); err != nil {
		return nil, fmt.Errorf("insert interview: %w", err)
	}

	s.log.Info().Str("interview_id", iv.ID).Str("user_id", userID).Msg("interview created")
	s.publish(EventInterviewCreated, iv)
	return iv, nil
}

// UpdateInterview replaces the definition of an owned interview and
// regenerates its questions.
func (s *Service) UpdateInterview(ctx context.Context, userID, id string, in Input) (*database.Interview, error) {
	in = in.trimmed()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	iv, err := s.GetInterview(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	questions, err := s.generateQuestions(ctx, in)
	if err != nil {
		return nil, err
	}

	iv.Position = in.Position
	iv.Description = in.Description
	iv.Experience = in.Experience
	iv.TechStack = in.TechStack
	iv.Questions = questions
	if err := s.store.UpdateInterview(ctx, iv); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update interview: %w", err)
	}

	s.log.Info().Str("interview_id", iv.ID).Msg("interview updated")
	s.publish(EventInterviewUpdated, iv)
	return iv, nil
}

// GetInterview returns an interview owned by userID. Interviews owned by
// other users are reported as ErrNotFound.
func (s *Service) GetInterview(ctx context.Context, userID, id string) (*database.Interview, error) {
	iv, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.UserID != userID {
		return nil, ErrNotFound
	}
	return iv, nil
}

// ListInterviews returns the user's interviews, newest first, and the total
// number matching opts.
func (s *Service) ListInterviews(ctx context.Context, userID string, opts ListOptions) ([]database.Interview, int, error) {
	return s.store.ListInterviews(ctx, database.InterviewFilter{
		UserID: userID,
		Search: opts.Search,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// DeleteInterview removes an owned interview and the user's answers to it.
func (s *Service) DeleteInterview(ctx context.Context, userID, id string) error {
	n, err := s.store.DeleteInterview(ctx, id, userID)
	if err != nil {
		return err
	}
	s.log.Info().Str("interview_id", id).Int64("answers_deleted", n).Msg("interview deleted")
	s.publish(EventInterviewDeleted, map[string]any{
		"id":              id,
		"user_id":         userID,
		"answers_deleted": n,
	})
	return nil
}

// Questions decodes the stored question set of iv.
func Questions(iv *database.Interview) ([]normalize.QAPair, error) {
	var qs []normalize.QAPair
	if len(iv.Questions) == 0 {
		return qs, nil
	}
	if err := json.Unmarshal(iv.Questions, &qs); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", iv.ID, err)
	}
	return qs, nil
}

func (s *Service) generateQuestions(ctx context.Context, in Input) (json.RawMessage, error) {
	count := s.QuestionCount()
	prompt, err := s.prompts.QuestionsPrompt(prompts.QuestionInput{
		Position:    in.Position,
		Description: in.Description,
		Experience:  in.Experience,
		TechStack:   in.TechStack,
		Count:       count,
	})
	if err != nil {
		return nil, fmt.Errorf("render questions prompt: %w", err)
	}

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.Error().Err(err).Msg("question generation failed")
		return nil, &GenerationError{Stage: "generate", Err: err}
	}

	qs, err := normalize.QuestionSet(raw, count)
	if err != nil {
		s.normalizeFailed(normalize.Array, raw, err)
		return nil, &GenerationError{Stage: "normalize", Err: err}
	}

	b, err := json.Marshal(qs)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	return b, nil
}

func (s *Service) normalizeFailed(shape normalize.Variant, raw string, err error) {
	kind := normalize.Kind(err)
	metrics.NormalizeFailuresTotal.WithLabelValues(shape.String(), kind).Inc()
	s.log.Warn().
		Err(err).
		Str("shape", shape.String()).
		Str("kind", kind).
		Str("raw", truncate(raw, rawLogLimit)).
		Msg("model reply rejected")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
