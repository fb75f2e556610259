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

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Safety categories blocked at low probability and above.
var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

// GeminiClient calls the Gemini generateContent REST endpoint.
// Implements the Provider interface.
type GeminiClient struct {
	apiKey  string
	model   string // e.g. "gemini-2.0-flash"
	baseURL string
	gen     GenerationConfig
	client  *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// NewGeminiClient creates a Gemini client. Empty model and base URL take defaults.
func NewGeminiClient(opts Options) *GeminiClient {
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	base := opts.BaseURL
	if base == "" {
		base = geminiBaseURL
	}
	return &GeminiClient{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
		gen:     opts.Generation,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Name returns the provider name.
func (g *GeminiClient) Name() string { return "gemini" }

// Model returns the configured model identifier.
func (g *GeminiClient) Model() string { return g.model }

// Generate sends a single-turn user prompt and returns the first candidate's text.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      g.gen.Temperature,
			TopP:             g.gen.TopP,
			TopK:             g.gen.TopK,
			MaxOutputTokens:  g.gen.MaxOutputTokens,
			ResponseMimeType: "text/plain",
		},
	}
	for _, c := range geminiSafetyCategories {
		reqBody.SafetySettings = append(reqBody.SafetySettings, geminiSafetySetting{
			Category:  c,
			Threshold: "BLOCK_LOW_AND_ABOVE",
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Candidates) == 0 {
		if reason := result.PromptFeedback.BlockReason; reason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrNoCompletion, reason)
		}
		return "", ErrNoCompletion
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: finish reason %s", ErrNoCompletion, result.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}
