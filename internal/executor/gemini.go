package executor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini executor.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float32
}

// Gemini generates documents with a Gemini model.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature *float32
}

// NewGemini creates a Gemini-backed executor.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("executor: gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: create gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(models contentGenerator, cfg GeminiConfig) *Gemini {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model, temperature: cfg.Temperature}
}

// Name implements Executor.
func (g *Gemini) Name() string { return "gemini:" + g.model }

// Execute implements Executor.
func (g *Gemini) Execute(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{Temperature: g.temperature}
	if req.Persona != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Persona, genai.RoleUser)
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(composePrompt(req)), config)
	if err != nil {
		return "", fmt.Errorf("executor: gemini %s/%s: %w", req.Phase, req.Step, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("executor: gemini %s/%s: empty response", req.Phase, req.Step)
	}
	return text, nil
}

// composePrompt appends the expected-output description to the prompt.
func composePrompt(req Request) string {
	if strings.TrimSpace(req.Expected) == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nExpected output: " + req.Expected
}
