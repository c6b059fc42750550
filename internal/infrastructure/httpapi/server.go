// Package httpapi exposes the agent, subscriptions and the cron trigger over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ports"
)

// Asker answers a question in the given mode.
type Asker interface {
	Ask(ctx context.Context, question string, mode domain.Mode) (domain.Answer, error)
}

// DailyRunner runs ingestion and the digest once.
type DailyRunner interface {
	Run(ctx context.Context, now time.Time) (domain.DigestReport, error)
}

// ItemLister serves the public item listings.
type ItemLister interface {
	SelectLatest(ctx context.Context, limit int) ([]domain.Item, error)
	SelectFeatured(ctx context.Context, limit int) ([]domain.Item, error)
}

// Deps wires the handlers.
type Deps struct {
	Agent       Asker
	Daily       DailyRunner
	Subscribers ports.SubscriberStore
	Stats       ports.StatsStore
	Items       ItemLister
	// UnsubscribeSecret keys the HMAC of unsubscribe links.
	UnsubscribeSecret string
	// CronSecret authorizes manual triggers of the daily job.
	CronSecret string
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Server is the echo application.
type Server struct {
	echo *echo.Echo
}

// NewServer registers every route.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	v := newRequestValidator()
	e.Validator = v
	e.Use(middleware.Recover())
	e.Use(requestLogger(deps.Logger))

	h := &handlers{deps: deps, validator: v}
	e.GET("/healthz", h.health)
	e.POST("/api/ask", h.ask)
	e.POST("/api/subscribe", h.subscribe)
	e.GET("/unsubscribe", h.unsubscribe)
	e.GET("/api/unsubscribe", h.unsubscribe)
	e.GET("/api/cron/daily", h.cronDaily)
	e.GET("/api/stats", h.stats)
	e.GET("/api/items/latest", h.latest)
	e.GET("/api/items/featured", h.featured)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	return &Server{echo: e}
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.Info("request completed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds())
			} else {
				log.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds(), "error", v.Error.Error())
			}
			return nil
		},
	})
}
