package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"ThemePulse/internal/domain/models"
	"ThemePulse/internal/service/pricecache"
	"ThemePulse/internal/service/ratelimit"
	xlogger "ThemePulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThemes struct {
	refreshes int
	calls     int
	byName    map[string]models.ThemeAggregate
	err       error
}

func (f *fakeThemes) GetAllThemePrices(force bool) models.ThemeSnapshot {
	f.calls++
	if force {
		f.refreshes++
	}
	return models.ThemeSnapshot{
		Themes:       []models.ThemeAggregate{{Name: "AI", AvgChangeRate: 1.5, Stocks: []models.Tick{}}},
		MarketStatus: models.MarketStatusInfo{Status: models.SessionRegular, IsOpen: true},
	}
}

func (f *fakeThemes) GetThemePrice(_ context.Context, name string) (models.ThemeAggregate, error) {
	if f.err != nil {
		return models.ThemeAggregate{}, f.err
	}
	a, ok := f.byName[name]
	if !ok {
		return models.ThemeAggregate{}, models.ErrThemeNotFound
	}
	return a, nil
}

type fakeHistory struct {
	gotTheme  string
	gotPeriod models.HistoryPeriod
}

func (f *fakeHistory) GetHistory(_ context.Context, theme string, period models.HistoryPeriod) ([]models.HistorySample, error) {
	f.gotTheme, f.gotPeriod = theme, period
	if theme == "missing" {
		return nil, models.ErrThemeNotFound
	}
	return []models.HistorySample{{Theme: theme, AvgChangeRate: 0.5}}, nil
}

type fixedStatus struct{}

func (fixedStatus) Status() models.MarketStatusInfo {
	return models.MarketStatusInfo{Status: models.SessionClosed, Label: "weekend", NextOpen: "2024-10-21 08:30"}
}

type connected bool

func (c connected) IsConnected() bool { return bool(c) }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newThemesServer(t *testing.T, themes *fakeThemes, history *fakeHistory, prices *pricecache.Cache) *echo.Echo {
	t.Helper()
	fixed := time.Date(2024, 10, 16, 1, 0, 0, 0, time.UTC)
	lim := ratelimit.NewWithClock(func() time.Time { return fixed })
	h := NewThemesEchoHandler(xlogger.Nop(), themes, history, fixedStatus{}, prices, connected(true), lim,
		RefreshLimit{Burst: 1, PerSecond: 0.1})
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestThemesSnapshot(t *testing.T) {
	themes := &fakeThemes{}
	e := newThemesServer(t, themes, &fakeHistory{}, pricecache.New())

	rec, env := get(t, e, "/api/themes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))

	var snap models.ThemeSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Themes, 1)
	assert.Equal(t, "AI", snap.Themes[0].Name)
	assert.Equal(t, 0, themes.refreshes)
}

func TestThemesRefreshIsRateLimited(t *testing.T) {
	themes := &fakeThemes{}
	e := newThemesServer(t, themes, &fakeHistory{}, pricecache.New())

	rec, _ := get(t, e, "/api/themes?refresh=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, themes.refreshes)

	rec, env := get(t, e, "/api/themes?refresh=true")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.Status)
	assert.Equal(t, 1, themes.refreshes)

	// plain reads are never limited
	rec, _ = get(t, e, "/api/themes")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThemeByName(t *testing.T) {
	themes := &fakeThemes{byName: map[string]models.ThemeAggregate{
		"AI": {Name: "AI", AvgChangeRate: 2.25, Stocks: []models.Tick{{Code: "005930", Price: 100, CumulativeVolume: 3}}},
	}}
	e := newThemesServer(t, themes, &fakeHistory{}, pricecache.New())

	rec, env := get(t, e, "/api/themes/AI")
	require.Equal(t, http.StatusOK, rec.Code)
	var agg models.ThemeAggregate
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	assert.Equal(t, 2.25, agg.AvgChangeRate)
	assert.Contains(t, string(env.Data), `"tradedValue":300`)

	rec, env = get(t, e, "/api/themes/Nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_NOT_FOUND")
}

func TestThemeNameWithSlash(t *testing.T) {
	const name = "인터넷/게임"
	themes := &fakeThemes{byName: map[string]models.ThemeAggregate{
		name: {Name: name, AvgChangeRate: -0.5},
	}}
	history := &fakeHistory{}
	e := newThemesServer(t, themes, history, pricecache.New())

	rec, env := get(t, e, "/api/themes/"+url.PathEscape(name))
	require.Equal(t, http.StatusOK, rec.Code)
	var agg models.ThemeAggregate
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	assert.Equal(t, name, agg.Name)

	rec, _ = get(t, e, "/api/themes/"+url.PathEscape(name)+"/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, name, history.gotTheme)
}

func TestThemeInternalErrorHidesDetail(t *testing.T) {
	themes := &fakeThemes{err: errors.New("dial tcp 10.0.0.1:9443: refused")}
	e := newThemesServer(t, themes, &fakeHistory{}, pricecache.New())

	rec, env := get(t, e, "/api/themes/AI")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, string(env.Data), "10.0.0.1")
}

func TestThemeHistory(t *testing.T) {
	history := &fakeHistory{}
	e := newThemesServer(t, &fakeThemes{}, history, pricecache.New())

	rec, env := get(t, e, "/api/themes/AI/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AI", history.gotTheme)
	assert.Equal(t, models.PeriodToday, history.gotPeriod)
	var rows []models.HistorySample
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)

	rec, _ = get(t, e, "/api/themes/AI/history?period=7d")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Period7D, history.gotPeriod)

	rec, _ = get(t, e, "/api/themes/AI/history?period=2w")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, e, "/api/themes/missing/history?period=1d")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketStatusAndDebug(t *testing.T) {
	prices := pricecache.New()
	prices.Put("005930", models.Tick{Code: "005930", Price: 70000, CumulativeVolume: 10})
	e := newThemesServer(t, &fakeThemes{}, &fakeHistory{}, prices)

	rec, env := get(t, e, "/api/market/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.MarketStatusInfo
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.IsOpen)
	assert.Equal(t, "weekend", st.Label)

	rec, env = get(t, e, "/api/debug/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	var dbg models.CacheDebug
	require.NoError(t, json.Unmarshal(env.Data, &dbg))
	assert.Equal(t, 1, dbg.Count)
	assert.True(t, dbg.FeedConnected)
	assert.Equal(t, 70000.0, dbg.Ticks["005930"].Price)

	rec, env = get(t, e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"cachedInstruments":1`)
}
