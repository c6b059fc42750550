package ports

import (
	"context"
	"time"

	"ResearchDigest/internal/domain"
)

// Constraints bound a single connector search.
type Constraints struct {
	Window time.Duration
	Limit  int
	TTL    time.Duration
}

// Connector searches one upstream source and returns normalized items.
type Connector interface {
	Name() string
	Search(ctx context.Context, query string, c Constraints) ([]domain.Item, error)
}

// ItemCache keeps connector responses for a bounded time.
type ItemCache interface {
	Get(ctx context.Context, key string) ([]domain.Item, bool)
	Set(ctx context.Context, key string, items []domain.Item, ttl time.Duration)
	TTL(ctx context.Context, key string) time.Duration
}

// ItemSource pulls fresh items from the configured ingestion sites. A failing
// site is reported in the stats and does not fail the call.
type ItemSource interface {
	FetchAll(ctx context.Context, now time.Time) ([]domain.Item, domain.IngestStats, error)
}

// ItemStore is the persisted item collection with full-text search.
type ItemStore interface {
	SearchFullText(ctx context.Context, query string, limit int) ([]domain.Item, error)
	UpsertItem(ctx context.Context, item domain.Item) error
	UpsertScore(ctx context.Context, id string, score float64) error
	SelectRecentTop(ctx context.Context, since time.Time, limit int) ([]domain.Item, error)
	SelectRecentNewsTop(ctx context.Context, since time.Time, limit int) ([]domain.Item, error)
	SelectLatest(ctx context.Context, limit int) ([]domain.Item, error)
	SelectFeatured(ctx context.Context, limit int) ([]domain.Item, error)
	UpdateSummaryZh(ctx context.Context, id, summary string) error
	ClearFeatured(ctx context.Context) error
	SetFeatured(ctx context.Context, ids []string) error
}

// SubscriberStore manages digest recipients.
type SubscriberStore interface {
	UpsertSubscriber(ctx context.Context, sub domain.Subscriber) error
	RemoveSubscriber(ctx context.Context, email string) error
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

// SentLogStore persists digest deliveries.
type SentLogStore interface {
	InsertSentLog(ctx context.Context, entry domain.SentLog) error
}

// StatsStore exposes public counters.
type StatsStore interface {
	Stats(ctx context.Context) (domain.StoreStats, error)
}

// Generator produces text from a prompt with a named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// DigestRenderer formats digest entries for one recipient language.
type DigestRenderer interface {
	Render(lang domain.Language, entries []domain.DigestEntry, unsubscribeURL string) (domain.DigestMessage, error)
	PlainText(lang domain.Language, entries []domain.DigestEntry) string
}

// Notifier streams selected digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
