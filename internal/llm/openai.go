package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls any OpenAI-compatible /chat/completions endpoint.
// Implements the Provider interface.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	gen     GenerationConfig
	client  *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIClient creates an OpenAI-compatible client. Top-K has no equivalent and is ignored.
func NewOpenAIClient(opts Options) *OpenAIClient {
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	base := opts.BaseURL
	if base == "" {
		base = openAIBaseURL
	}
	return &OpenAIClient{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
		gen:     opts.Generation,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Name returns the provider name.
func (o *OpenAIClient) Name() string { return "openai" }

// Model returns the configured model identifier.
func (o *OpenAIClient) Model() string { return o.model }

// Generate sends prompt as a single user message and returns the first choice.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(openAIRequest{
		Model:       o.model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: o.gen.Temperature,
		TopP:        o.gen.TopP,
		MaxTokens:   o.gen.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
	}

	var result openAIResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("openai API error (%s): %s", result.Error.Type, result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrNoCompletion
	}
	return result.Choices[0].Message.Content, nil
}
