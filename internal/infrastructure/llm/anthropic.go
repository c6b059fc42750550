package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/ports"
)

const anthropicMaxTokens = 2048

// Anthropic implements ports.Generator on the Messages API.
type Anthropic struct {
	client *anthropic.Client
}

var _ ports.Generator = (*Anthropic)(nil)

// NewAnthropic builds a client from configuration; extra options are appended.
func NewAnthropic(cfg config.LLMConfig, opts ...option.RequestOption) *Anthropic {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	return &Anthropic{client: &client}
}

// Generate sends prompt as a single user message and joins the text blocks.
func (c *Anthropic) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic %s: %w", model, err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		b.WriteString(block.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic %s: no content returned", model)
	}
	return strings.TrimSpace(b.String()), nil
}
