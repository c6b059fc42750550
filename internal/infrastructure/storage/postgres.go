// Package storage persists items, subscribers and send logs in Postgres.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

// Pool is the subset of *pgxpool.Pool the repository needs; pgxmock satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	errNoPool = errors.New("database connection not available")

	itemColumns = []string{
		"id",
		"title",
		"url",
		"COALESCE(source, '')",
		"COALESCE(summary, '')",
		"COALESCE(summary_zh, '')",
		"COALESCE(lang, '')",
		"COALESCE(tags, '{}')",
		"published_at",
		"COALESCE(score, 0)",
		"COALESCE(star_count, 0)",
		"COALESCE(is_featured, FALSE)",
	}
)

// PostgresRepository implements every store port on one pool.
type PostgresRepository struct {
	pool Pool
}

var (
	_ ports.ItemStore       = (*PostgresRepository)(nil)
	_ ports.SubscriberStore = (*PostgresRepository)(nil)
	_ ports.SentLogStore    = (*PostgresRepository)(nil)
	_ ports.StatsStore      = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a pool implementation.
func NewPostgresRepository(pool Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Connect opens and pings a pgx pool.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// SearchFullText ranks matches by persisted score, then text rank, then recency.
func (r *PostgresRepository) SearchFullText(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	q := psql.Select(itemColumns...).
		From("items").
		Where("tsv @@ plainto_tsquery('simple', ?)", query).
		OrderByClause("COALESCE(score, 0) DESC, ts_rank(tsv, plainto_tsquery('simple', ?)) DESC, published_at DESC NULLS LAST", query).
		Limit(uint64(limit))
	return r.selectItems(ctx, "search items", q)
}

// UpsertItem inserts or refreshes an item. Score, Chinese summary and featured flag are preserved.
func (r *PostgresRepository) UpsertItem(ctx context.Context, item domain.Item) error {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	q := psql.Insert("items").
		Columns("id", "title", "url", "source", "summary", "lang", "tags", "published_at", "star_count").
		Values(item.ID, item.Title, item.URL, item.Source, item.Summary, string(item.Language), tags, item.PublishedAt, item.Stars).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			summary = EXCLUDED.summary,
			lang = EXCLUDED.lang,
			tags = EXCLUDED.tags,
			published_at = EXCLUDED.published_at,
			star_count = EXCLUDED.star_count`)
	return r.exec(ctx, "upsert item", q)
}

// UpsertScore sets the persisted relevance score.
func (r *PostgresRepository) UpsertScore(ctx context.Context, id string, score float64) error {
	return r.exec(ctx, "upsert score", psql.Update("items").Set("score", score).Where(sq.Eq{"id": id}))
}

// SelectRecentTop returns the best scored items since the given instant; undated items qualify.
func (r *PostgresRepository) SelectRecentTop(ctx context.Context, since time.Time, limit int) ([]domain.Item, error) {
	q := psql.Select(itemColumns...).
		From("items").
		Where(sq.Or{sq.Eq{"published_at": nil}, sq.GtOrEq{"published_at": since}}).
		OrderBy("score DESC NULLS LAST", "published_at DESC NULLS LAST").
		Limit(uint64(limit))
	return r.selectItems(ctx, "select recent top", q)
}

// SelectRecentNewsTop is SelectRecentTop without repositories, newest first.
func (r *PostgresRepository) SelectRecentNewsTop(ctx context.Context, since time.Time, limit int) ([]domain.Item, error) {
	q := psql.Select(itemColumns...).
		From("items").
		Where(sq.Or{sq.Eq{"published_at": nil}, sq.GtOrEq{"published_at": since}}).
		Where(sq.Expr("(source IS NULL OR source NOT ILIKE ?)", "%github%")).
		OrderBy("published_at DESC NULLS LAST", "score DESC NULLS LAST").
		Limit(uint64(limit))
	return r.selectItems(ctx, "select recent news", q)
}

// SelectLatest lists the newest items.
func (r *PostgresRepository) SelectLatest(ctx context.Context, limit int) ([]domain.Item, error) {
	q := psql.Select(itemColumns...).
		From("items").
		OrderBy("published_at DESC NULLS LAST", "created_at DESC").
		Limit(uint64(limit))
	return r.selectItems(ctx, "select latest", q)
}

// SelectFeatured lists the items of the current digest.
func (r *PostgresRepository) SelectFeatured(ctx context.Context, limit int) ([]domain.Item, error) {
	q := psql.Select(itemColumns...).
		From("items").
		Where(sq.Eq{"is_featured": true}).
		OrderBy("score DESC NULLS LAST", "published_at DESC NULLS LAST").
		Limit(uint64(limit))
	return r.selectItems(ctx, "select featured", q)
}

// UpdateSummaryZh stores the generated Chinese summary.
func (r *PostgresRepository) UpdateSummaryZh(ctx context.Context, id, summary string) error {
	return r.exec(ctx, "update summary_zh", psql.Update("items").Set("summary_zh", summary).Where(sq.Eq{"id": id}))
}

// ClearFeatured unflags every featured item.
func (r *PostgresRepository) ClearFeatured(ctx context.Context) error {
	return r.exec(ctx, "clear featured", psql.Update("items").Set("is_featured", false).Where(sq.Eq{"is_featured": true}))
}

// SetFeatured flags the given items.
func (r *PostgresRepository) SetFeatured(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.exec(ctx, "set featured", psql.Update("items").Set("is_featured", true).Where(sq.Eq{"id": ids}))
}

// UpsertSubscriber adds or re-confirms a recipient with its language.
func (r *PostgresRepository) UpsertSubscriber(ctx context.Context, sub domain.Subscriber) error {
	q := psql.Insert("subscribers").
		Columns("email", "lang", "confirmed").
		Values(sub.Email, string(sub.Language), true).
		Suffix("ON CONFLICT (email) DO UPDATE SET lang = EXCLUDED.lang, confirmed = TRUE")
	return r.exec(ctx, "upsert subscriber", q)
}

// RemoveSubscriber deletes a recipient.
func (r *PostgresRepository) RemoveSubscriber(ctx context.Context, email string) error {
	return r.exec(ctx, "remove subscriber", psql.Delete("subscribers").Where(sq.Eq{"email": email}))
}

// ListSubscribers returns confirmed recipients.
func (r *PostgresRepository) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	if r.pool == nil {
		return nil, errNoPool
	}
	query, args, err := psql.Select("email", "lang").From("subscribers").Where(sq.Eq{"confirmed": true}).OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list subscribers: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var (
			sub  domain.Subscriber
			lang string
		)
		if err := rows.Scan(&sub.Email, &lang); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		sub.Language = domain.Language(lang)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}

// InsertSentLog records one delivery.
func (r *PostgresRepository) InsertSentLog(ctx context.Context, entry domain.SentLog) error {
	items, err := json.Marshal(entry.ItemIDs)
	if err != nil {
		return fmt.Errorf("encode sent items: %w", err)
	}
	q := psql.Insert("sent_logs").
		Columns("id", "email", "date", "items", "lang").
		Values(entry.ID, entry.Email, entry.Date.Format("2006-01-02"), string(items), string(entry.Language))
	return r.exec(ctx, "insert sent log", q)
}

// Stats counts items and confirmed subscribers.
func (r *PostgresRepository) Stats(ctx context.Context) (domain.StoreStats, error) {
	if r.pool == nil {
		return domain.StoreStats{}, errNoPool
	}
	var items, subs int64
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM items), (SELECT COUNT(*) FROM subscribers WHERE confirmed = TRUE)`,
	).Scan(&items, &subs)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("stats: %w", err)
	}
	return domain.StoreStats{Items: int(items), Subscribers: int(subs)}, nil
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func (r *PostgresRepository) exec(ctx context.Context, op string, q sqlizer) error {
	if r.pool == nil {
		return errNoPool
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresRepository) selectItems(ctx context.Context, op string, q sq.SelectBuilder) ([]domain.Item, error) {
	if r.pool == nil {
		return nil, errNoPool
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var (
			it   domain.Item
			lang string
		)
		if err := rows.Scan(
			&it.ID, &it.Title, &it.URL, &it.Source, &it.Summary, &it.SummaryZh,
			&lang, &it.Tags, &it.PublishedAt, &it.Score, &it.Stars, &it.Featured,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Language = domain.Language(lang)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return items, nil
}
