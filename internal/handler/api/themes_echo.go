package api

import (
	"context"
	"errors"
	"net/url"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	"ThemePulse/internal/service/metrics"
	"ThemePulse/internal/service/ratelimit"
	xhttp "ThemePulse/pkg/http"
	xlogger "ThemePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ThemeQuerier answers theme aggregate queries.
type ThemeQuerier interface {
	GetAllThemePrices(forceRefresh bool) models.ThemeSnapshot
	GetThemePrice(ctx context.Context, name string) (models.ThemeAggregate, error)
}

// HistoryQuerier answers theme history range queries.
type HistoryQuerier interface {
	GetHistory(ctx context.Context, theme string, period models.HistoryPeriod) ([]models.HistorySample, error)
}

// StatusSource reports the current trading session.
type StatusSource interface {
	Status() models.MarketStatusInfo
}

// FeedState reports whether the upstream feed is connected.
type FeedState interface {
	IsConnected() bool
}

// RefreshLimit bounds forced snapshot recomputation per client address.
type RefreshLimit struct {
	Burst     float64
	PerSecond float64
}

// ThemesEchoHandler serves the theme query surface.
type ThemesEchoHandler struct {
	logger  *xlogger.Logger
	themes  ThemeQuerier
	history HistoryQuerier
	status  StatusSource
	prices  drepo.PriceReader
	feed    FeedState
	limiter *ratelimit.Limiter
	limit   RefreshLimit
}

func NewThemesEchoHandler(
	logger *xlogger.Logger,
	themes ThemeQuerier,
	history HistoryQuerier,
	status StatusSource,
	prices drepo.PriceReader,
	feed FeedState,
	limiter *ratelimit.Limiter,
	limit RefreshLimit,
) *ThemesEchoHandler {
	return &ThemesEchoHandler{
		logger:  logger.Component("themes_api"),
		themes:  themes,
		history: history,
		status:  status,
		prices:  prices,
		feed:    feed,
		limiter: limiter,
		limit:   limit,
	}
}

func (h *ThemesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/themes", h.Themes)
	g.GET("/themes/:name", h.Theme)
	g.GET("/themes/:name/history", h.History)
	g.GET("/market/status", h.MarketStatus)
	g.GET("/debug/cache", h.DebugCache)
	e.GET("/healthz", h.Health)
}

func (h *ThemesEchoHandler) Themes(c echo.Context) error {
	req := &models.ThemesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Refresh && h.limiter != nil && !h.limiter.Allow(c.RealIP(), h.limit.Burst, h.limit.PerSecond) {
		metrics.RefreshRejected.Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh rate exceeded"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.themes.GetAllThemePrices(req.Refresh))
}

func (h *ThemesEchoHandler) Theme(c echo.Context) error {
	req := &models.ThemeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// echo binds params from RawPath, so names like "인터넷/게임" arrive escaped
	name, err := url.PathUnescape(req.Name)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid theme name"))
	}

	res, err := h.themes.GetThemePrice(c.Request().Context(), name)
	if err != nil {
		return h.fail(c, "theme", name, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ThemesEchoHandler) History(c echo.Context) error {
	req := &models.ThemeHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	name, err := url.PathUnescape(req.Name)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid theme name"))
	}

	res, err := h.history.GetHistory(c.Request().Context(), name, models.HistoryPeriod(req.Period))
	if err != nil {
		return h.fail(c, "history", name, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ThemesEchoHandler) MarketStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status.Status())
}

func (h *ThemesEchoHandler) DebugCache(c echo.Context) error {
	ticks := h.prices.All()
	return xhttp.SuccessResponse(c, models.CacheDebug{
		Count:         len(ticks),
		FeedConnected: h.feedConnected(),
		Ticks:         ticks,
	})
}

func (h *ThemesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":            "ok",
		"feedConnected":     h.feedConnected(),
		"cachedInstruments": h.prices.Len(),
		"market":            h.status.Status().Status,
	})
}

func (h *ThemesEchoHandler) feedConnected() bool {
	return h.feed != nil && h.feed.IsConnected()
}

// fail maps domain errors onto the HTTP error vocabulary.
func (h *ThemesEchoHandler) fail(c echo.Context, op, theme string, err error) error {
	switch {
	case errors.Is(err, models.ErrThemeNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("theme %q not found", theme).WithError(err))
	case errors.Is(err, models.ErrInvalidPeriod):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid period").WithError(err))
	}
	h.logger.Error(op+" usecase error", xlogger.String("theme", theme), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
