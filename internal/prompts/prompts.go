// Package prompts renders the language-model prompts from YAML-backed templates.
package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"
	"text/template"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Templates is the on-disk prompt file format.
type Templates struct {
	QuestionCount int    `yaml:"question_count"`
	Questions     string `yaml:"questions"`
	Evaluation    string `yaml:"evaluation"`
}

// QuestionInput feeds the question-generation prompt.
type QuestionInput struct {
	Position    string
	Description string
	Experience  int
	TechStack   string
	Count       int // 0 uses the file's question_count
}

// EvaluationInput feeds the answer-scoring prompt.
type EvaluationInput struct {
	Question      string
	UserAnswer    string
	CorrectAnswer string
}

type compiled struct {
	count      int
	questions  *template.Template
	evaluation *template.Template
}

// Store holds the current compiled templates. Safe for concurrent use.
type Store struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	cur *compiled
}

// Default returns the built-in templates.
func Default() Templates {
	var t Templates
	if err := yaml.Unmarshal(defaultsYAML, &t); err != nil {
		panic(fmt.Sprintf("prompts: embedded defaults: %v", err))
	}
	return t
}

// New loads templates from path, or the built-in defaults when path is empty.
func New(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		path: path,
		log:  log.With().Str("component", "prompts").Logger(),
	}

	data := defaultsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts file: %w", err)
		}
		data = b
	}

	c, err := parse(data)
	if err != nil {
		return nil, err
	}
	s.cur = c
	return s, nil
}

// parse decodes YAML and compiles it. Missing templates fall back to the defaults.
func parse(data []byte) (*compiled, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	def := Default()
	if t.Questions == "" {
		t.Questions = def.Questions
	}
	if t.Evaluation == "" {
		t.Evaluation = def.Evaluation
	}
	if t.QuestionCount <= 0 {
		t.QuestionCount = def.QuestionCount
	}

	q, err := template.New("questions").Option("missingkey=error").Parse(t.Questions)
	if err != nil {
		return nil, fmt.Errorf("questions template: %w", err)
	}
	e, err := template.New("evaluation").Option("missingkey=error").Parse(t.Evaluation)
	if err != nil {
		return nil, fmt.Errorf("evaluation template: %w", err)
	}
	return &compiled{count: t.QuestionCount, questions: q, evaluation: e}, nil
}

func (s *Store) current() *compiled {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// QuestionCount is the file's default number of questions.
func (s *Store) QuestionCount() int {
	return s.current().count
}

// QuestionsPrompt renders the question-generation prompt.
func (s *Store) QuestionsPrompt(in QuestionInput) (string, error) {
	c := s.current()
	if in.Count <= 0 {
		in.Count = c.count
	}
	return render(c.questions, in)
}

// EvaluationPrompt renders the answer-scoring prompt.
func (s *Store) EvaluationPrompt(in EvaluationInput) (string, error) {
	return render(s.current().evaluation, in)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Reload re-reads the prompts file. On error the current templates stay in place.
func (s *Store) Reload() error {
	if s.path == "" {
		return errors.New("no prompts file configured")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read prompts file: %w", err)
	}
	c, err := parse(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
	return nil
}
