package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ranking"
)

// Retriever gathers candidates for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, mode domain.Mode) []domain.Item
}

// Composer writes the answer from ranked references.
type Composer interface {
	Compose(ctx context.Context, question string, refs []domain.Item, mode domain.Mode) (domain.Answer, error)
}

// AgentDeps wires the question-answering flow.
type AgentDeps struct {
	Retriever Retriever
	Composer  Composer
	// Credential reports whether a model can be called; a non-nil error aborts before any search.
	Credential      func() error
	DeepReferences  int
	QuickReferences int
	Now             func() time.Time
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Agent answers domain questions in deep or quick mode.
type Agent struct {
	retriever  Retriever
	composer   Composer
	credential func() error
	refs       map[domain.Mode]int
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewAgent constructs the ask use case.
func NewAgent(deps AgentDeps) *Agent {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Credential == nil {
		deps.Credential = func() error { return nil }
	}
	if deps.DeepReferences <= 0 {
		deps.DeepReferences = 6
	}
	if deps.QuickReferences <= 0 {
		deps.QuickReferences = 3
	}
	return &Agent{
		retriever:  deps.Retriever,
		composer:   deps.Composer,
		credential: deps.Credential,
		refs: map[domain.Mode]int{
			domain.ModeDeep:  deps.DeepReferences,
			domain.ModeQuick: deps.QuickReferences,
		},
		now:     deps.Now,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// AskConcept runs the deep research flow.
func (a *Agent) AskConcept(ctx context.Context, question string) (domain.Answer, error) {
	return a.Ask(ctx, question, domain.ModeDeep)
}

// AskConceptQuick runs the low-latency flow.
func (a *Agent) AskConceptQuick(ctx context.Context, question string) (domain.Answer, error) {
	return a.Ask(ctx, question, domain.ModeQuick)
}

// Ask retrieves, ranks and composes. Configuration errors are returned before any network call.
func (a *Agent) Ask(ctx context.Context, question string, mode domain.Mode) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}
	if err := a.credential(); err != nil {
		return domain.Answer{}, err
	}
	mode = domain.ParseMode(string(mode))

	candidates := a.retriever.Retrieve(ctx, question, mode)
	refs := ranking.Items(ranking.Rank(candidates, question, a.now(), a.refs[mode]))
	a.metrics.References(string(mode), len(refs))
	a.logger.Debug("references ranked", "mode", mode, "candidates", len(candidates), "references", len(refs))

	answer, err := a.composer.Compose(ctx, question, refs, mode)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("compose answer: %w", err)
	}
	return answer, nil
}
