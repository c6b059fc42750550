package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ResearchDigest/internal/domain"
)

func TestReferencesFormat(t *testing.T) {
	t.Parallel()

	got := References([]domain.Item{
		{Title: " BEV fusion ", URL: "https://a.example", Source: "arxiv"},
		{Title: "No source", URL: "https://b.example"},
	})
	assert.Equal(t, "1. [BEV fusion](https://a.example) - arxiv\n2. [No source](https://b.example)", got)
}

func TestDeepPromptEmbedsReferences(t *testing.T) {
	t.Parallel()

	c := MustLoad()
	refs := []domain.Item{{Title: "Planner", URL: "https://p.example", Source: "google-news"}}

	dense, err := c.Deep("what is end-to-end planning?", refs, false)
	require.NoError(t, err)
	assert.Contains(t, dense, "1. [Planner](https://p.example) - google-news")
	assert.Contains(t, dense, "[1][2]")
	assert.Contains(t, dense, "what is end-to-end planning?")
	assert.NotContains(t, dense, "supplementary knowledge")

	sparse, err := c.Deep("q", nil, true)
	require.NoError(t, err)
	assert.Contains(t, sparse, "supplementary knowledge")
	assert.Contains(t, sparse, "temporarily unavailable")
}

func TestQuickPromptIsShorter(t *testing.T) {
	t.Parallel()

	c := MustLoad()
	refs := []domain.Item{{Title: "Headline", URL: "https://h.example", Source: "google-news"}}

	quick, err := c.Quick("what is BEV?", refs)
	require.NoError(t, err)
	deep, err := c.Deep("what is BEV?", refs, false)
	require.NoError(t, err)

	assert.Contains(t, quick, "- Headline")
	assert.NotContains(t, quick, "[1]")
	assert.Less(t, len(quick), len(deep))
}

func TestSummaryPrompts(t *testing.T) {
	t.Parallel()

	c := MustLoad()
	zh, err := c.SummaryZh("标题", "abstract")
	require.NoError(t, err)
	assert.True(t, strings.Contains(zh, "120"))
	assert.Contains(t, zh, "标题")

	en, err := c.SummaryEn("Title", "abstract")
	require.NoError(t, err)
	assert.Contains(t, en, "300-400 words")
}

func TestLoadOverridesFromDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quick.tmpl"), []byte("short: {{.Question}}"), 0o600))

	c, err := Load(dir)
	require.NoError(t, err)

	got, err := c.Quick("q1", nil)
	require.NoError(t, err)
	assert.Equal(t, "short: q1", got)

	deep, err := c.Deep("q1", nil, false)
	require.NoError(t, err)
	assert.Contains(t, deep, "Core concept")
}

func TestLoadRejectsBrokenOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deep.tmpl"), []byte("{{.Question"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}
