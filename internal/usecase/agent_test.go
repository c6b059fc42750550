package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/logging"
	"ResearchDigest/internal/metrics"
)

type spyRetriever struct {
	items []domain.Item
	calls int
	mode  domain.Mode
}

func (s *spyRetriever) Retrieve(_ context.Context, _ string, mode domain.Mode) []domain.Item {
	s.calls++
	s.mode = mode
	return s.items
}

type spyComposer struct {
	refs []domain.Item
	err  error
}

func (s *spyComposer) Compose(_ context.Context, q string, refs []domain.Item, mode domain.Mode) (domain.Answer, error) {
	s.refs = refs
	if s.err != nil {
		return domain.Answer{}, s.err
	}
	return domain.Answer{Text: "answer to " + q, References: refs}, nil
}

func candidates(n int) []domain.Item {
	items := make([]domain.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.Item{
			ID:          fmt.Sprintf("id-%d", i),
			Title:       fmt.Sprintf("Generic update number %d", i),
			URL:         fmt.Sprintf("https://example.org/%d", i),
			Source:      "google-news",
			PublishedAt: at(time.Duration(i) * 24 * time.Hour),
		})
	}
	return items
}

func newTestAgent(r Retriever, c Composer, credential func() error) *Agent {
	return NewAgent(AgentDeps{
		Retriever:  r,
		Composer:   c,
		Credential: credential,
		Now:        func() time.Time { return fixedNow },
		Logger:     logging.Discard(),
	})
}

func TestAskConceptRanksTopReferences(t *testing.T) {
	t.Parallel()

	items := candidates(10)
	items[9].Title = "End-to-end BEV planning for autonomous driving"
	retriever := &spyRetriever{items: items}
	composer := &spyComposer{}
	agent := newTestAgent(retriever, composer, nil)

	answer, err := agent.AskConcept(context.Background(), "  end-to-end planning  ")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeDeep, retriever.mode)
	require.Len(t, composer.refs, 6)
	assert.Equal(t, "id-9", composer.refs[0].ID, "boosted item ranks first")
	assert.Equal(t, "answer to end-to-end planning", answer.Text)
	assert.Equal(t, composer.refs, answer.References)
}

func TestAskObservesReferencesOnce(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	agent := NewAgent(AgentDeps{
		Retriever: &spyRetriever{items: candidates(8)},
		Composer:  &spyComposer{},
		Now:       func() time.Time { return fixedNow },
		Logger:    logging.Discard(),
		Metrics:   m,
	})

	_, err := agent.AskConcept(context.Background(), "lidar")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ReferenceSamples(string(domain.ModeDeep)))
}

func TestAskConceptQuickKeepsThree(t *testing.T) {
	t.Parallel()

	retriever := &spyRetriever{items: candidates(8)}
	composer := &spyComposer{}
	agent := newTestAgent(retriever, composer, nil)

	_, err := agent.AskConceptQuick(context.Background(), "lidar")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeQuick, retriever.mode)
	assert.Len(t, composer.refs, 3)
}

func TestAskFailsFastWithoutCredential(t *testing.T) {
	t.Parallel()

	retriever := &spyRetriever{items: candidates(3)}
	agent := newTestAgent(retriever, &spyComposer{}, func() error { return domain.ErrLLMNotConfigured })

	_, err := agent.AskConcept(context.Background(), "What is BEV?")
	assert.ErrorIs(t, err, domain.ErrLLMNotConfigured)
	assert.Zero(t, retriever.calls, "no search may run without a model")
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	retriever := &spyRetriever{}
	agent := newTestAgent(retriever, &spyComposer{}, nil)

	_, err := agent.AskConceptQuick(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Zero(t, retriever.calls)
}

func TestAskWrapsComposerError(t *testing.T) {
	t.Parallel()

	cause := errors.New("both models failed")
	agent := newTestAgent(&spyRetriever{}, &spyComposer{err: cause}, nil)

	_, err := agent.AskConcept(context.Background(), "ADAS")
	assert.ErrorIs(t, err, cause)
}

func TestAskWithNoCandidatesStillComposes(t *testing.T) {
	t.Parallel()

	composer := &spyComposer{}
	agent := newTestAgent(&spyRetriever{}, composer, nil)

	answer, err := agent.AskConcept(context.Background(), "smart cockpit")
	require.NoError(t, err)
	assert.NotNil(t, composer.refs)
	assert.Empty(t, answer.References)
}
