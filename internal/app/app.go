package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ResearchDigest/internal/cache"
	"ResearchDigest/internal/compose"
	"ResearchDigest/internal/config"
	"ResearchDigest/internal/decompose"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/infrastructure/connector"
	"ResearchDigest/internal/infrastructure/httpapi"
	"ResearchDigest/internal/infrastructure/llm"
	"ResearchDigest/internal/infrastructure/mail"
	"ResearchDigest/internal/infrastructure/parser"
	"ResearchDigest/internal/infrastructure/scheduler"
	"ResearchDigest/internal/infrastructure/storage"
	"ResearchDigest/internal/infrastructure/telegram"
	"ResearchDigest/internal/logging"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/prompt"
	"ResearchDigest/internal/retrieval"
	"ResearchDigest/internal/scanner"
	"ResearchDigest/internal/topic"
	"ResearchDigest/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      *storage.PostgresRepository
	agent     *usecase.Agent
	pipeline  *usecase.Pipeline
	digest    *usecase.Digest
	daily     *usecase.Daily
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	closers   []func()
}

// New connects the store and builds every adapter and use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}
	m := metrics.New()

	pool, err := storage.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.repo = storage.NewPostgresRepository(pool)

	itemCache, err := a.buildCache(m)
	if err != nil {
		a.Close()
		return nil, err
	}

	prompts, err := prompt.Load(cfg.LLM.TemplatesDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	gen, err := llm.New(ctx, cfg.LLM)
	switch {
	case errors.Is(err, domain.ErrLLMNotConfigured):
		baseLogger.Warn("language model not configured; ask and summaries are disabled")
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("build generator: %w", err)
	}

	fetcher := connector.NewFetcher(cfg.Retrieval.ConnectorTimeout, cfg.Sources.HostInterval, cfg.Sources.UserAgent)
	normalizer := normalize.New(topic.NewMatcher(cfg.Sources.Keywords))
	news := connector.NewGoogleNews(cfg.Sources.GoogleNewsURL, fetcher, itemCache, normalizer)
	sources := retrieval.Sources{
		News:   news,
		Papers: connector.NewArxiv(cfg.Sources.ArxivAPIURL, fetcher, itemCache, normalizer, nil),
		Repos:  connector.NewGitHub(cfg.Sources.GitHubAPIURL, cfg.Sources.GitHubToken, fetcher, itemCache, nil),
		Store:  connector.NewLocalStore(a.repo),
	}
	for _, f := range cfg.Sources.Feeds {
		sources.Feeds = append(sources.Feeds, connector.NewFeed(f.URL, f.Kind, domain.Language(f.Lang), fetcher, itemCache, normalizer, nil))
	}

	decomposer := decompose.New(gen, cfg.LLM.DecomposeModel, prompts, cfg.LLM.Timeout, baseLogger.With("component", "decompose"))
	composer := compose.New(gen, compose.Options{
		PrimaryModel:  cfg.LLM.PrimaryModel,
		FallbackModel: cfg.LLM.FallbackModel,
		Timeout:       cfg.LLM.Timeout,
	}, prompts, baseLogger.With("component", "compose"), m)
	orchestrator := retrieval.New(sources, decomposer, cfg.Retrieval, baseLogger.With("component", "retrieval"), m)

	a.agent = usecase.NewAgent(usecase.AgentDeps{
		Retriever:       orchestrator,
		Composer:        composer,
		Credential:      cfg.LLMCredential,
		DeepReferences:  cfg.Retrieval.Deep.References,
		QuickReferences: cfg.Retrieval.Quick.References,
		Logger:          baseLogger.With("component", "agent"),
		Metrics:         m,
	})

	registry := scanner.NewRegistry(
		parser.NewFeedScanner(fetcher, normalizer, baseLogger.With("component", "scanner.rss")),
		parser.NewArxivScanner(fetcher, normalizer),
		parser.NewGitHubScanner(cfg.Sources.GitHubAPIURL, cfg.Sources.GitHubToken, fetcher),
	)
	source := parser.NewStrategySource(registry, cfg.Sites, cfg.Digest.Window, baseLogger.With("component", "source"))
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source: source,
		Store:  a.repo,
		Logger: baseLogger.With("component", "pipeline"),
	})

	var mailer ports.Mailer
	if smtp, err := mail.NewSMTPMailer(cfg.Mail); err == nil {
		mailer = smtp
	} else {
		baseLogger.Warn("mail relay not configured; digests will not be sent")
	}
	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg != nil {
		notifier = tg
	}

	a.digest = usecase.NewDigest(usecase.DigestDeps{
		Items:       a.repo,
		Subscribers: a.repo,
		SentLogs:    a.repo,
		News:        news,
		NewsTTL:     cfg.Retrieval.Deep.NewsTTL,
		Generator:   composer,
		Prompts:     prompts,
		Renderer:    mail.NewRenderer(nil),
		Mailer:      mailer,
		Notifier:    notifier,
		Config:      cfg.Digest,
		BaseURL:     cfg.Site.BaseURL,
		Secret:      cfg.UnsubscribeSecret(),
		Logger:      baseLogger.With("component", "digest"),
		Metrics:     m,
	})
	a.daily = usecase.NewDaily(a.pipeline, a.digest, baseLogger.With("component", "daily"))

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger.With("component", "scheduler"))
	a.scheduler = usecase.NewScheduler(driver, a.daily, baseLogger.With("component", "scheduler"))

	a.server = httpapi.NewServer(httpapi.Deps{
		Agent:             a.agent,
		Daily:             a.daily,
		Subscribers:       a.repo,
		Stats:             a.repo,
		Items:             a.repo,
		UnsubscribeSecret: cfg.UnsubscribeSecret(),
		CronSecret:        cfg.Site.CronSecret,
		Metrics:           m,
		Logger:            baseLogger.With("component", "http"),
		Now:               a.now,
	})

	return a, nil
}

func (a *Application) buildCache(m *metrics.Metrics) (ports.ItemCache, error) {
	if a.cfg.Cache.Backend == "redis" && a.cfg.Cache.RedisURL != "" {
		rc := cache.NewRedis(a.cfg.Cache.RedisURL, a.logger.With("component", "cache"), m)
		a.closers = append(a.closers, func() { _ = rc.Close() })
		return rc, nil
	}
	mc, err := cache.NewMemory(a.cfg.Cache.Size, time.Now, m)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	return mc, nil
}

// Ask answers one question.
func (a *Application) Ask(ctx context.Context, question string, mode domain.Mode) (domain.Answer, error) {
	return a.agent.Ask(ctx, question, mode)
}

// Ingest runs one ingestion pass.
func (a *Application) Ingest(ctx context.Context) (domain.IngestStats, error) {
	return a.pipeline.Ingest(ctx, a.now())
}

// SendDigest runs the daily job once: ingest, then mail.
func (a *Application) SendDigest(ctx context.Context) (domain.DigestReport, error) {
	return a.daily.Run(ctx, a.now())
}

// EnsureSchema creates tables and indexes.
func (a *Application) EnsureSchema(ctx context.Context) error {
	return a.repo.EnsureSchema(ctx)
}

// Serve runs the HTTP API and the cron scheduler until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http listening", "addr", a.cfg.HTTP.Addr)
		return a.server.Start(a.cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
		return a.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases pools and clients.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *Application) now() time.Time {
	return time.Now().In(a.cfg.Scheduler.Location())
}
