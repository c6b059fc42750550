// Package compose turns ranked references into a model-written answer.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/prompt"
)

const sparseReferences = 2

// Composer calls the primary model and, on any failure, the fallback model once.
type Composer struct {
	generator ports.Generator
	primary   string
	fallback  string
	prompts   *prompt.Catalogue
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Options name the models and bound each call.
type Options struct {
	PrimaryModel  string
	FallbackModel string
	Timeout       time.Duration
}

// New builds a Composer.
func New(gen ports.Generator, opts Options, prompts *prompt.Catalogue, log *slog.Logger, m *metrics.Metrics) *Composer {
	if log == nil {
		log = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.MustLoad()
	}
	return &Composer{
		generator: gen,
		primary:   opts.PrimaryModel,
		fallback:  opts.FallbackModel,
		prompts:   prompts,
		timeout:   opts.Timeout,
		logger:    log,
		metrics:   m,
	}
}

// Compose answers question from refs. The text is returned as generated and
// References is exactly refs.
func (c *Composer) Compose(ctx context.Context, question string, refs []domain.Item, mode domain.Mode) (domain.Answer, error) {
	var (
		text string
		err  error
	)
	if mode == domain.ModeQuick {
		text, err = c.prompts.Quick(question, refs)
	} else {
		sparse := len(refs) < sparseReferences
		if sparse {
			c.logger.Warn("composing with few references", "references", len(refs))
		}
		text, err = c.prompts.Deep(question, refs, sparse)
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("build prompt: %w", err)
	}

	out, err := c.Generate(ctx, text)
	if err != nil {
		return domain.Answer{}, err
	}
	if refs == nil {
		refs = []domain.Item{}
	}
	return domain.Answer{Text: out, References: refs}, nil
}

// Generate runs prompt against the primary model, then the fallback. When both
// fail the returned error joins both causes.
func (c *Composer) Generate(ctx context.Context, text string) (string, error) {
	if c.generator == nil {
		return "", domain.ErrLLMNotConfigured
	}
	out, primaryErr := c.call(ctx, c.primary, text)
	if primaryErr == nil {
		return out, nil
	}
	if errors.Is(primaryErr, domain.ErrLLMNotConfigured) {
		return "", primaryErr
	}
	c.logger.Warn("primary model failed, trying fallback", "model", c.primary, "fallback", c.fallback, "error", primaryErr)

	out, fallbackErr := c.call(ctx, c.fallback, text)
	if fallbackErr == nil {
		return out, nil
	}
	return "", fmt.Errorf("generate: %w", errors.Join(
		fmt.Errorf("primary %s: %w", c.primary, primaryErr),
		fmt.Errorf("fallback %s: %w", c.fallback, fallbackErr),
	))
}

func (c *Composer) call(ctx context.Context, model, text string) (string, error) {
	if model == "" {
		return "", errors.New("model not set")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := c.generator.Generate(ctx, model, text)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		c.metrics.Model(model, "error")
		return "", err
	}
	c.metrics.Model(model, "ok")
	return out, nil
}
