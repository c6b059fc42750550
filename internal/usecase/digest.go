package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/prompt"
	"ResearchDigest/internal/ranking"
	"ResearchDigest/internal/unsubscribe"
)

const (
	zhSummaryRunes = 120
	githubNeedle   = "github"
)

// TextGenerator produces free text with the primary and fallback models.
type TextGenerator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// DigestDeps wires the scheduled digest.
type DigestDeps struct {
	Items       ports.ItemStore
	Subscribers ports.SubscriberStore
	SentLogs    ports.SentLogStore
	// News is queried with the default domain query when the store has nothing recent.
	News      ports.Connector
	NewsTTL   time.Duration
	Generator TextGenerator
	Prompts   *prompt.Catalogue
	Renderer  ports.DigestRenderer
	Mailer    ports.Mailer
	Notifier  ports.Notifier
	Config    config.DigestConfig
	BaseURL   string
	Secret    string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Digest selects the day's items and mails them to every subscriber.
type Digest struct {
	items       ports.ItemStore
	subscribers ports.SubscriberStore
	sentLogs    ports.SentLogStore
	news        ports.Connector
	newsTTL     time.Duration
	generator   TextGenerator
	prompts     *prompt.Catalogue
	renderer    ports.DigestRenderer
	mailer      ports.Mailer
	notifier    ports.Notifier
	cfg         config.DigestConfig
	baseURL     string
	secret      string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewDigest constructs the digest use case.
func NewDigest(deps DigestDeps) *Digest {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Prompts == nil {
		deps.Prompts = prompt.MustLoad()
	}
	if deps.Config.Items <= 0 {
		deps.Config.Items = 2
	}
	if deps.Config.Window <= 0 {
		deps.Config.Window = 48 * time.Hour
	}
	if deps.Config.MaxSummary <= 0 {
		deps.Config.MaxSummary = 1200
	}
	return &Digest{
		items:       deps.Items,
		subscribers: deps.Subscribers,
		sentLogs:    deps.SentLogs,
		news:        deps.News,
		newsTTL:     deps.NewsTTL,
		generator:   deps.Generator,
		prompts:     deps.Prompts,
		renderer:    deps.Renderer,
		mailer:      deps.Mailer,
		notifier:    deps.Notifier,
		cfg:         deps.Config,
		baseURL:     deps.BaseURL,
		secret:      deps.Secret,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// Send runs one digest: select, summarize, feature, render and mail. A failing
// recipient is logged and counted; the others still receive the digest.
func (d *Digest) Send(ctx context.Context, now time.Time) (domain.DigestReport, error) {
	report := domain.DigestReport{Featured: []string{}}
	if d.mailer == nil {
		return report, domain.ErrMailNotConfigured
	}

	subs, err := d.subscribers.ListSubscribers(ctx)
	if err != nil {
		return report, fmt.Errorf("list subscribers: %w", err)
	}

	sel, err := d.Select(ctx, now)
	if err != nil {
		return report, err
	}
	report.Selected = len(sel.Items)
	if len(sel.Items) == 0 {
		d.logger.Warn("digest has nothing to send", "window", d.cfg.Window)
		return report, nil
	}

	d.summarizeZh(ctx, sel.Items)
	report.Featured = d.feature(ctx, sel)

	entries := d.entries(ctx, sel.Items, needsEnglish(subs))
	for _, sub := range subs {
		if err := d.deliver(ctx, sub, sel, entries); err != nil {
			report.Failed++
			d.metrics.Mail("error")
			d.logger.Warn("digest delivery failed", "email", sub.Email, "error", err)
			continue
		}
		report.Mailed++
		d.metrics.Mail("ok")
	}

	if d.notifier != nil {
		if err := d.notifier.PublishDigest(ctx, d.renderer.PlainText(domain.LangEN, entries)); err != nil {
			d.logger.Warn("notifier failed", "error", err)
		}
	}

	d.logger.Info("digest sent", "selected", report.Selected, "mailed", report.Mailed, "failed", report.Failed)
	return report, nil
}

// Select picks up to cfg.Items recent items: news first, then any non-repository
// item, then a live news search for the default query.
func (d *Digest) Select(ctx context.Context, now time.Time) (domain.DigestSelection, error) {
	n := d.cfg.Items
	since := now.Add(-d.cfg.Window)
	sel := domain.DigestSelection{Date: now}

	news, err := d.items.SelectRecentNewsTop(ctx, since, n)
	if err != nil {
		return sel, fmt.Errorf("select recent news: %w", err)
	}
	sel.Items = append(sel.Items, news...)

	if len(sel.Items) < n {
		recent, err := d.items.SelectRecentTop(ctx, since, n)
		if err != nil {
			return sel, fmt.Errorf("select recent: %w", err)
		}
		sel.Items = fill(sel.Items, recent, n)
	}

	if len(sel.Items) == 0 && d.news != nil {
		sel.Items = d.searchFallback(ctx, now, n)
	}
	return sel, nil
}

func (d *Digest) searchFallback(ctx context.Context, now time.Time, n int) []domain.Item {
	found, err := d.news.Search(ctx, d.cfg.DefaultQuery, ports.Constraints{Window: d.cfg.Window, Limit: n, TTL: d.newsTTL})
	if err != nil {
		d.logger.Warn("digest news fallback failed", "source", d.news.Name(), "error", err)
		return nil
	}
	items := make([]domain.Item, 0, len(found))
	for _, it := range found {
		if !it.Valid() {
			continue
		}
		it.Score = ranking.Score(it, "", now)
		if err := d.items.UpsertItem(ctx, it); err != nil {
			d.logger.Warn("store fallback item failed", "id", it.ID, "error", err)
		}
		items = append(items, it)
		if len(items) == n {
			break
		}
	}
	return items
}

func fill(selected, extra []domain.Item, n int) []domain.Item {
	have := make(map[string]struct{}, len(selected))
	for _, it := range selected {
		have[it.ID] = struct{}{}
	}
	for _, it := range extra {
		if len(selected) >= n {
			break
		}
		if _, dup := have[it.ID]; dup || strings.Contains(strings.ToLower(it.Source), githubNeedle) {
			continue
		}
		have[it.ID] = struct{}{}
		selected = append(selected, it)
	}
	return selected
}

// summarizeZh fills missing Chinese summaries in place and persists them.
func (d *Digest) summarizeZh(ctx context.Context, items []domain.Item) {
	for i := range items {
		if items[i].SummaryZh != "" {
			continue
		}
		text, err := d.prompts.SummaryZh(items[i].Title, items[i].Summary)
		if err == nil {
			text, err = d.generate(ctx, text)
		}
		if err != nil {
			d.logger.Warn("chinese summary failed", "id", items[i].ID, "error", err)
			continue
		}
		summary := clip(text, zhSummaryRunes)
		if err := d.items.UpdateSummaryZh(ctx, items[i].ID, summary); err != nil {
			d.logger.Warn("persist chinese summary failed", "id", items[i].ID, "error", err)
		}
		items[i].SummaryZh = summary
	}
}

func (d *Digest) feature(ctx context.Context, sel domain.DigestSelection) []string {
	ids := sel.IDs()
	if err := d.items.ClearFeatured(ctx); err != nil {
		d.logger.Warn("clear featured failed", "error", err)
		return ids
	}
	if err := d.items.SetFeatured(ctx, ids); err != nil {
		d.logger.Warn("set featured failed", "error", err)
	}
	return ids
}

// entries builds the rendered rows; the long English summary is generated once per run.
func (d *Digest) entries(ctx context.Context, items []domain.Item, english bool) []domain.DigestEntry {
	out := make([]domain.DigestEntry, 0, len(items))
	for _, it := range items {
		entry := domain.DigestEntry{
			Title:     it.Title,
			URL:       it.URL,
			Summary:   it.Summary,
			SummaryZh: it.SummaryZh,
		}
		if english {
			entry.SummaryEn = d.longEnglish(ctx, it)
		}
		out = append(out, entry)
	}
	return out
}

func (d *Digest) longEnglish(ctx context.Context, it domain.Item) string {
	text, err := d.prompts.SummaryEn(it.Title, it.Summary)
	if err == nil {
		text, err = d.generate(ctx, text)
	}
	if err != nil {
		d.logger.Warn("english summary failed", "id", it.ID, "error", err)
		return ""
	}
	return clip(text, d.cfg.MaxSummary)
}

func (d *Digest) generate(ctx context.Context, text string) (string, error) {
	if d.generator == nil {
		return "", domain.ErrLLMNotConfigured
	}
	out, err := d.generator.Generate(ctx, text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty model response")
	}
	return out, nil
}

func (d *Digest) deliver(ctx context.Context, sub domain.Subscriber, sel domain.DigestSelection, entries []domain.DigestEntry) error {
	link := ""
	if d.baseURL != "" {
		link = unsubscribe.Link(d.baseURL, d.secret, sub.Email)
	}
	msg, err := d.renderer.Render(sub.Language, entries, link)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, sub.Email, msg.Subject, msg.HTML); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if d.sentLogs == nil {
		return nil
	}
	entry := domain.SentLog{
		ID:       uuid.NewString(),
		Email:    sub.Email,
		Date:     sel.Date,
		ItemIDs:  sel.IDs(),
		Language: sub.Language,
	}
	if err := d.sentLogs.InsertSentLog(ctx, entry); err != nil {
		d.logger.Warn("record sent log failed", "email", sub.Email, "error", err)
	}
	return nil
}

func needsEnglish(subs []domain.Subscriber) bool {
	for _, s := range subs {
		if s.Language != domain.LangZH {
			return true
		}
	}
	return false
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit]))
}
