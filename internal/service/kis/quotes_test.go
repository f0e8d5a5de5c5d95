package kis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	xhttp "ThemePulse/pkg/http"
	"ThemePulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuoteServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 86400})
	})
	mux.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newQuotes(srv *httptest.Server) *Quotes {
	auth := NewAuth(xhttp.NewClient(), srv.URL, Credentials{AppKey: "key", AppSecret: "secret"}, time.Minute, time.Second, logger.Nop())
	return NewQuotes(xhttp.NewClient(), srv.URL, auth, 0, 3, 10*time.Millisecond)
}

func writeQuote(w http.ResponseWriter, price, change, sign, rate, volume string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"rt_cd": "0",
		"msg1":  "ok",
		"output": map[string]string{
			"stck_prpr":      price,
			"prdy_vrss":      change,
			"prdy_vrss_sign": sign,
			"prdy_ctrt":      rate,
			"acml_vol":       volume,
		},
	})
}

func TestQuote(t *testing.T) {
	srv := newQuoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("authorization"))
		assert.Equal(t, trInquirePrice, r.Header.Get("tr_id"))
		assert.Equal(t, "J", r.URL.Query().Get("FID_COND_MRKT_DIV_CODE"))
		assert.Equal(t, "005930", r.URL.Query().Get("FID_INPUT_ISCD"))
		writeQuote(w, "70000", "-1200", "5", "-1.68", "1000")
	})

	tick, err := newQuotes(srv).Quote(t.Context(), "005930")
	require.NoError(t, err)
	assert.Equal(t, "005930", tick.Code)
	assert.Equal(t, 70000.0, tick.Price)
	assert.Equal(t, -1200.0, tick.ChangePrice)
	assert.Equal(t, -1.68, tick.ChangeRate)
	assert.Equal(t, int64(1000), tick.CumulativeVolume)
}

func TestQuoteRetriesConnectionReset(t *testing.T) {
	var calls atomic.Int32
	srv := newQuoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		writeQuote(w, "500", "10", "2", "2.04", "7")
	})

	tick, err := newQuotes(srv).Quote(t.Context(), "000660")
	require.NoError(t, err)
	assert.Equal(t, 500.0, tick.Price)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestQuoteUpstreamErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := newQuoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := newQuotes(srv).Quote(t.Context(), "000660")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQuoteRejectedByUpstream(t *testing.T) {
	srv := newQuoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rt_cd": "1", "msg_cd": "EGW00201", "msg1": "rate exceeded"})
	})

	_, err := newQuotes(srv).Quote(t.Context(), "000660")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EGW00201")
}
