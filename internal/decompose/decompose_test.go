package decompose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ResearchDigest/internal/logging"
	"ResearchDigest/internal/topic"
)

type stubGenerator struct {
	out    string
	err    error
	calls  int
	models []string
	delay  time.Duration
}

func (s *stubGenerator) Generate(ctx context.Context, model, _ string) (string, error) {
	s.calls++
	s.models = append(s.models, model)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.out, s.err
}

func TestParseStripsScaffoldAndMarkers(t *testing.T) {
	t.Parallel()

	out := "Question: how does BEV work\n\n1. BEV transformer architecture\n- lidar camera fusion\n* bev transformer architecture\nRequirements:\n要求：英文\n`occupancy networks`\nextra query"
	got := Parse(out)
	assert.Equal(t, []string{"BEV transformer architecture", "lidar camera fusion", "occupancy networks"}, got)
}

func TestParseKeepsQueriesStartingWithLabelWords(t *testing.T) {
	t.Parallel()

	out := "Question answering VLM for driving\nExample-based motion planning\nquestion: ignored\nOutput：ignored"
	got := Parse(out)
	assert.Equal(t, []string{"Question answering VLM for driving", "Example-based motion planning"}, got)
}

func TestDecomposeUsesModelOutput(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{out: "end-to-end driving\nworld models"}
	d := New(gen, "small", nil, time.Second, logging.Discard())

	got := d.Decompose(context.Background(), "what is end-to-end driving?")
	assert.Equal(t, []string{"end-to-end driving", "world models"}, got)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, []string{"small"}, gen.models)
}

func TestDecomposeFallsBackOnError(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: errors.New("quota exceeded")}
	d := New(gen, "small", nil, time.Second, logging.Discard())

	got := d.Decompose(context.Background(), "How do VLMs help planning？")
	require.Len(t, got, 3)
	assert.Equal(t, "How do VLMs help planning", got[0])
	assert.Equal(t, topic.DefaultQueries, got[1:])
	assert.Equal(t, 1, gen.calls, "single attempt only")
}

func TestDecomposeFallsBackOnEmptyOutput(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{out: "Question: x\n\n要求：y"}
	d := New(gen, "small", nil, time.Second, logging.Discard())

	got := d.Decompose(context.Background(), "lidar?")
	assert.Equal(t, "lidar", got[0])
}

func TestDecomposeFallsBackOnTimeout(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{out: "late", delay: time.Second}
	d := New(gen, "small", nil, 20*time.Millisecond, logging.Discard())

	got := d.Decompose(context.Background(), "radar")
	assert.Equal(t, "radar", got[0])
}

func TestFallbackTruncatesToFiftyRunes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("自", 80) + "?"
	got := Fallback(long)
	assert.Equal(t, 50, len([]rune(got[0])))

	empty := Fallback("???")
	assert.Equal(t, topic.DefaultQueries, empty)
}
