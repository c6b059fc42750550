package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/unsubscribe"
)

const (
	cronTriggerHeader = "X-Cron-Trigger"
	latestLimit       = 20
	featuredLimit     = 2
	maxListLimit      = 100
)

type handlers struct {
	deps      Deps
	validator *requestValidator
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
	Mode     string `json:"mode"`
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Lang  string `json:"lang" validate:"required,oneof=zh en"`
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handlers) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	answer, err := h.deps.Agent.Ask(c.Request().Context(), req.Question, domain.ParseMode(req.Mode))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, answer)
}

func (h *handlers) subscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Email = normalizeEmail(req.Email)
	if err := c.Validate(&req); err != nil {
		return err
	}
	sub := domain.Subscriber{Email: req.Email, Language: domain.Language(req.Lang)}
	if err := h.deps.Subscribers.UpsertSubscriber(c.Request().Context(), sub); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) unsubscribe(c echo.Context) error {
	email := normalizeEmail(c.QueryParam("email"))
	if err := h.validator.Var(email, "required,email"); err != nil || !unsubscribe.Verify(h.deps.UnsubscribeSecret, email, c.QueryParam("token")) {
		return mapError(domain.ErrInvalidToken)
	}
	if err := h.deps.Subscribers.RemoveSubscriber(c.Request().Context(), email); err != nil {
		return mapError(err)
	}
	return c.String(http.StatusOK, "已退订 / Unsubscribed")
}

func (h *handlers) cronDaily(c echo.Context) error {
	if !h.cronAuthorized(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	report, err := h.deps.Daily.Run(c.Request().Context(), h.deps.Now())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// cronAuthorized requires the key whenever a secret is configured. Without one, only
// the platform scheduler header is accepted.
func (h *handlers) cronAuthorized(c echo.Context) bool {
	if h.deps.CronSecret == "" {
		return c.Request().Header.Get(cronTriggerHeader) != ""
	}
	key := c.QueryParam("key")
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.deps.CronSecret)) == 1
}

func (h *handlers) stats(c echo.Context) error {
	stats, err := h.deps.Stats.Stats(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) latest(c echo.Context) error {
	limit, err := listLimit(c, latestLimit)
	if err != nil {
		return err
	}
	items, err := h.deps.Items.SelectLatest(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *handlers) featured(c echo.Context) error {
	limit, err := listLimit(c, featuredLimit)
	if err != nil {
		return err
	}
	items, err := h.deps.Items.SelectFeatured(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func listLimit(c echo.Context, def int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxListLimit {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
	}
	return n, nil
}

func nonNil(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// mapError converts a domain error into an echo.HTTPError.
func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrLLMNotConfigured),
		errors.Is(err, domain.ErrMailNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
