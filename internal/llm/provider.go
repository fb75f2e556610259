// Package llm talks to hosted generative-language APIs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider is the interface for text-generation backends.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string  // "gemini", "openai"
	Model() string // model identifier for logs and metrics
}

// ErrNoCompletion is returned when the model produced no usable text.
var ErrNoCompletion = errors.New("no completion returned")

// GenerationConfig holds the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultGenerationConfig matches the settings the prompts were tuned against.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.8,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 2048,
	}
}

// Options selects and configures a provider.
type Options struct {
	Provider   string // "gemini" (default) or "openai"
	APIKey     string
	Model      string
	BaseURL    string // empty uses the provider's public endpoint
	Timeout    time.Duration
	Generation GenerationConfig
}

// New builds the provider named by opts.Provider.
func New(opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("LLM_API_KEY is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	switch strings.ToLower(opts.Provider) {
	case "", "gemini":
		return NewGeminiClient(opts), nil
	case "openai":
		return NewOpenAIClient(opts), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
}

// truncate shortens API error bodies for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
