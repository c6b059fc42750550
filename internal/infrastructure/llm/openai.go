package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/ports"
)

const systemPrompt = "You are a research assistant for autonomous driving and in-car AI. Be precise and cite the numbered references you are given."

// OpenAI implements ports.Generator on OpenAI-compatible chat completion APIs.
type OpenAI struct {
	client *openai.Client
}

var _ ports.Generator = (*OpenAI)(nil)

// NewOpenAI builds a client from configuration; extra options are appended.
func NewOpenAI(cfg config.LLMConfig, opts ...option.RequestOption) *OpenAI {
	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if endpoint := cfg.Endpoint; endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		base = append(base, option.WithBaseURL(endpoint))
	}
	client := openai.NewClient(append(base, opts...)...)
	return &OpenAI{client: &client}
}

// Generate sends prompt as a single user turn.
func (c *OpenAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: no choices returned", model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
