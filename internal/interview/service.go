// Package interview implements the mock-interview workflow: generating
// question sets, scoring answers and assembling feedback reports.
package interview

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/prompts"
	"github.com/snarg/mockprep/internal/storage"
)

// Domain event names published after successful writes.
const (
	EventInterviewCreated  = "interview.created"
	EventInterviewUpdated  = "interview.updated"
	EventInterviewDeleted  = "interview.deleted"
	EventAnswerSaved       = "answer.saved"
	EventRecordingAttached = "answer.recording_attached"
)

// Store is the persistence the service needs. *database.DB satisfies it.
type Store interface {
	InsertInterview(ctx context.Context, iv *database.Interview) error
	UpdateInterview(ctx context.Context, iv *database.Interview) error
	GetInterview(ctx context.Context, id string) (*database.Interview, error)
	ListInterviews(ctx context.Context, filter database.InterviewFilter) ([]database.Interview, int, error)
	DeleteInterview(ctx context.Context, id, userID string) (int64, error)

	InsertAnswerIfAbsent(ctx context.Context, a *database.UserAnswer) (bool, error)
	GetAnswer(ctx context.Context, id string) (*database.UserAnswer, error)
	ListAnswers(ctx context.Context, userID, interviewID string) ([]database.UserAnswer, error)
	SetAnswerRecording(ctx context.Context, id, userID, key string) error

	UpsertUser(ctx context.Context, u *database.User) (bool, error)
	GetUser(ctx context.Context, id string) (*database.User, error)
}

// Generator produces raw model text for a prompt. llm.Provider satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Prompts renders model prompts. *prompts.Store satisfies it.
type Prompts interface {
	QuestionCount() int
	QuestionsPrompt(in prompts.QuestionInput) (string, error)
	EvaluationPrompt(in prompts.EvaluationInput) (string, error)
}

// EventPublisher receives domain events. Publishing is best effort.
type EventPublisher interface {
	PublishEvent(event string, payload any) error
}

type Options struct {
	Store      Store
	Generator  Generator
	Prompts    Prompts
	Events     EventPublisher         // optional
	Recordings storage.RecordingStore // optional

	// QuestionCount overrides the prompts' question_count when > 0.
	QuestionCount   int
	MinAnswerLength int
	Log             zerolog.Logger
}

type Service struct {
	store      Store
	gen        Generator
	prompts    Prompts
	events     EventPublisher
	recordings storage.RecordingStore

	questionCount   int
	minAnswerLength int
	log             zerolog.Logger
	now             func() time.Time
}

func NewService(opts Options) *Service {
	return &Service{
		store:           opts.Store,
		gen:             opts.Generator,
		prompts:         opts.Prompts,
		events:          opts.Events,
		recordings:      opts.Recordings,
		questionCount:   opts.QuestionCount,
		minAnswerLength: opts.MinAnswerLength,
		log:             opts.Log.With().Str("component", "interview").Logger(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// QuestionCount is the number of questions generated per interview.
func (s *Service) QuestionCount() int {
	if s.questionCount > 0 {
		return s.questionCount
	}
	return s.prompts.QuestionCount()
}

// RecordingsEnabled reports whether answer recordings can be stored.
func (s *Service) RecordingsEnabled() bool { return s.recordings != nil }

func (s *Service) publish(event string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("event publish failed")
	}
}
