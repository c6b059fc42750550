package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/ports"
)

// Gemini implements ports.Generator on the Gemini API.
type Gemini struct {
	client *genai.Client
}

var _ ports.Generator = (*Gemini)(nil)

// NewGemini creates the client; baseURL is empty outside tests.
func NewGemini(ctx context.Context, cfg config.LLMConfig, baseURL string) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Generate runs a single-turn text generation.
func (g *Gemini) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini %s: empty response", model)
	}
	return text, nil
}
