package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

var fixedNow = time.Date(2025, 11, 8, 6, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := fixedNow.Add(-d)
	return &t
}

type fakeStore struct {
	mu          sync.Mutex
	news        []domain.Item
	recent      []domain.Item
	upserted    []domain.Item
	scores      map[string]float64
	summariesZh map[string]string
	featured    []string
	cleared     int
	upsertErr   error
	selectErr   error
}

var _ ports.ItemStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{scores: map[string]float64{}, summariesZh: map[string]string{}}
}

func (s *fakeStore) SearchFullText(context.Context, string, int) ([]domain.Item, error) {
	return nil, nil
}

func (s *fakeStore) UpsertItem(_ context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted = append(s.upserted, item)
	return nil
}

func (s *fakeStore) UpsertScore(_ context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[id] = score
	return nil
}

func (s *fakeStore) SelectRecentTop(_ context.Context, _ time.Time, limit int) ([]domain.Item, error) {
	return head(s.recent, limit), s.selectErr
}

func (s *fakeStore) SelectRecentNewsTop(_ context.Context, _ time.Time, limit int) ([]domain.Item, error) {
	return head(s.news, limit), s.selectErr
}

func (s *fakeStore) SelectLatest(context.Context, int) ([]domain.Item, error)   { return nil, nil }
func (s *fakeStore) SelectFeatured(context.Context, int) ([]domain.Item, error) { return nil, nil }

func (s *fakeStore) UpdateSummaryZh(_ context.Context, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summariesZh[id] = summary
	return nil
}

func (s *fakeStore) ClearFeatured(context.Context) error {
	s.cleared++
	s.featured = nil
	return nil
}

func (s *fakeStore) SetFeatured(_ context.Context, ids []string) error {
	s.featured = append([]string(nil), ids...)
	return nil
}

func head(items []domain.Item, n int) []domain.Item {
	if n > 0 && len(items) > n {
		return append([]domain.Item(nil), items[:n]...)
	}
	return append([]domain.Item(nil), items...)
}

type fakeSubscribers struct {
	subs []domain.Subscriber
	err  error
}

func (f *fakeSubscribers) UpsertSubscriber(context.Context, domain.Subscriber) error { return nil }
func (f *fakeSubscribers) RemoveSubscriber(context.Context, string) error            { return nil }
func (f *fakeSubscribers) ListSubscribers(context.Context) ([]domain.Subscriber, error) {
	return f.subs, f.err
}

type fakeSentLogs struct {
	entries []domain.SentLog
}

func (f *fakeSentLogs) InsertSentLog(_ context.Context, entry domain.SentLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	sent   []sentMail
	failTo map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	if f.failTo[to] {
		return errors.New("relay rejected recipient")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

// textRenderer writes the chosen summary per language so tests can assert on it.
type textRenderer struct{}

func (textRenderer) Render(lang domain.Language, entries []domain.DigestEntry, unsub string) (domain.DigestMessage, error) {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Title + "|")
		switch {
		case lang == domain.LangZH && e.SummaryZh != "":
			b.WriteString(e.SummaryZh)
		case lang == domain.LangEN && e.SummaryEn != "":
			b.WriteString(e.SummaryEn)
		default:
			b.WriteString(e.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString(unsub)
	return domain.DigestMessage{Subject: "digest-" + string(lang), HTML: b.String()}, nil
}

func (textRenderer) PlainText(_ domain.Language, entries []domain.DigestEntry) string {
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	return strings.Join(titles, ",")
}

// echoGenerator answers summary prompts with a recognizable string.
type echoGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	reply func(prompt string) string
}

func (g *echoGenerator) Generate(_ context.Context, text string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if g.reply != nil {
		return g.reply(text), nil
	}
	return "generated", nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.messages = append(f.messages, digest)
	return nil
}

type fakeConnector struct {
	name    string
	items   []domain.Item
	err     error
	queries []string
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Search(_ context.Context, query string, c ports.Constraints) ([]domain.Item, error) {
	f.queries = append(f.queries, query)
	return head(f.items, c.Limit), f.err
}
