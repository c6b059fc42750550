// Package llm adapts hosted language model SDKs to ports.Generator.
package llm

import (
	"context"
	"fmt"
	"strings"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

// New selects the provider named in cfg. A missing key yields domain.ErrLLMNotConfigured.
func New(ctx context.Context, cfg config.LLMConfig) (ports.Generator, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrLLMNotConfigured
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini", "google":
		return NewGemini(ctx, cfg, "")
	case "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
