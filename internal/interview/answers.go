package interview

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/metrics"
	"github.com/snarg/mockprep/internal/normalize"
	"github.com/snarg/mockprep/internal/prompts"
	"github.com/snarg/mockprep/internal/storage"
)

const maxRating = 10

// Evaluation is the model's verdict on one answer. Nothing is stored until
// the caller saves it.
type Evaluation struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
	Rating        int    `json:"rating"`
	Feedback      string `json:"feedback"`
}

// Recording is either a redirect URL or a readable body.
type Recording struct {
	URL         string
	Body        io.ReadCloser
	ContentType string
}

// EvaluateAnswer asks the model to score in.UserAnswer against the stored
// answer for in.Question.
func (s *Service) EvaluateAnswer(ctx context.Context, userID, interviewID string, in AnswerInput) (*Evaluation, error) {
	userAnswer := strings.TrimSpace(in.UserAnswer)
	if err := s.checkAnswerLength(userAnswer); err != nil {
		return nil, err
	}
	qa, err := s.lookupQuestion(ctx, userID, interviewID, in.Question)
	if err != nil {
		return nil, err
	}

	prompt, err := s.prompts.EvaluationPrompt(prompts.EvaluationInput{
		Question:      qa.Question,
		UserAnswer:    userAnswer,
		CorrectAnswer: qa.Answer,
	})
	if err != nil {
		return nil, fmt.Errorf("render evaluation prompt: %w", err)
	}

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.Error().Err(err).Str("interview_id", interviewID).Msg("answer evaluation failed")
		return nil, &GenerationError{Stage: "generate", Err: err}
	}
	ev, err := normalize.ParseEvaluation(raw)
	if err != nil {
		s.normalizeFailed(normalize.Object, raw, err)
		return nil, &GenerationError{Stage: "normalize", Err: err}
	}

	return &Evaluation{
		Question:      qa.Question,
		CorrectAnswer: qa.Answer,
		UserAnswer:    userAnswer,
		Rating:        ev.Ratings,
		Feedback:      ev.Feedback,
	}, nil
}

// SaveAnswer stores a scored answer unless the user already answered the
// same question of the same interview, in which case ErrAlreadyAnswered is
// returned and nothing is written.
func (s *Service) SaveAnswer(ctx context.Context, userID, interviewID string, in SaveAnswerInput) (*database.UserAnswer, error) {
	userAnswer := strings.TrimSpace(in.UserAnswer)
	if err := s.checkAnswerLength(userAnswer); err != nil {
		return nil, err
	}
	if in.Rating < 0 || in.Rating > maxRating {
		return nil, invalid("rating", "must be between 0 and %d", maxRating)
	}
	qa, err := s.lookupQuestion(ctx, userID, interviewID, in.Question)
	if err != nil {
		return nil, err
	}

	a := &database.UserAnswer{
		ID:         uuid.NewString(),
		MockIDRef:  interviewID,
		Question:   qa.Question,
		CorrectAns: qa.Answer,
		UserAns:    userAnswer,
		Feedback:   in.Feedback,
		Rating:     in.Rating,
		UserID:     userID,
	}
	created, err := s.store.InsertAnswerIfAbsent(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("insert answer: %w", err)
	}
	if !created {
		metrics.AnswersSavedTotal.WithLabelValues("duplicate").Inc()
		return nil, ErrAlreadyAnswered
	}
	metrics.AnswersSavedTotal.WithLabelValues("created").Inc()

	s.publish(EventAnswerSaved, a)
	return a, nil
}

// AttachRecording stores the audio of an answer and links it to the answer.
func (s *Service) AttachRecording(ctx context.Context, userID, answerID string, data []byte, contentType string) (*database.UserAnswer, error) {
	if s.recordings == nil {
		return nil, ErrRecordingsDisabled
	}
	ext, ok := storage.ExtensionForContentType(contentType)
	if !ok {
		return nil, invalid("recording", "must be an audio or video file, got %q", contentType)
	}
	if len(data) == 0 {
		return nil, invalid("recording", "is empty")
	}
	a, err := s.ownedAnswer(ctx, userID, answerID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s/%s.%s", userID, a.MockIDRef, a.ID, ext)
	if err := s.recordings.Save(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	if err := s.store.SetAnswerRecording(ctx, a.ID, userID, key); err != nil {
		return nil, fmt.Errorf("link recording: %w", err)
	}
	a.RecordingKey = &key

	s.log.Info().Str("answer_id", a.ID).Str("key", key).Int("bytes", len(data)).Msg("recording attached")
	s.publish(EventRecordingAttached, map[string]string{
		"answer_id":     a.ID,
		"interview_id":  a.MockIDRef,
		"user_id":       userID,
		"recording_key": key,
	})
	return a, nil
}

// OpenRecording returns a presigned URL when the backend has one, otherwise
// an open body the caller must close.
func (s *Service) OpenRecording(ctx context.Context, userID, answerID string) (*Recording, error) {
	if s.recordings == nil {
		return nil, ErrRecordingsDisabled
	}
	a, err := s.ownedAnswer(ctx, userID, answerID)
	if err != nil {
		return nil, err
	}
	if a.RecordingKey == nil || *a.RecordingKey == "" {
		return nil, ErrNotFound
	}
	key := *a.RecordingKey
	rec := &Recording{ContentType: storage.ContentTypeForKey(key)}

	url, err := s.recordings.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign recording: %w", err)
	}
	if url != "" {
		rec.URL = url
		return rec, nil
	}

	if !s.recordings.Exists(ctx, key) {
		return nil, ErrNotFound
	}
	body, err := s.recordings.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	rec.Body = body
	return rec, nil
}

func (s *Service) ownedAnswer(ctx context.Context, userID, answerID string) (*database.UserAnswer, error) {
	a, err := s.store.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Service) checkAnswerLength(answer string) error {
	if utf8.RuneCountInString(answer) < s.minAnswerLength {
		return invalid("user_answer", "must be at least %d characters", s.minAnswerLength)
	}
	return nil
}

// lookupQuestion finds question in an owned interview's question set.
func (s *Service) lookupQuestion(ctx context.Context, userID, interviewID, question string) (normalize.QAPair, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return normalize.QAPair{}, invalid("question", "is required")
	}
	iv, err := s.GetInterview(ctx, userID, interviewID)
	if err != nil {
		return normalize.QAPair{}, err
	}
	qs, err := Questions(iv)
	if err != nil {
		return normalize.QAPair{}, err
	}
	for _, qa := range qs {
		if strings.TrimSpace(qa.Question) == question {
			return qa, nil
		}
	}
	return normalize.QAPair{}, invalid("question", "is not part of interview %s", interviewID)
}
