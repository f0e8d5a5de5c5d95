package kis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ThemePulse/internal/service/cache"
	xhttp "ThemePulse/pkg/http"
	"ThemePulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, issued *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key", req.AppKey)
		assert.Equal(t, "secret", req.AppSecret)
		n := issued.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + string(rune('0'+n)),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/Approval", func(w http.ResponseWriter, r *http.Request) {
		var req approvalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "secret", req.SecretKey)
		_ = json.NewEncoder(w).Encode(map[string]string{"approval_key": "approval"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAccessTokenCachedUntilMargin(t *testing.T) {
	var issued atomic.Int32
	srv := newAuthServer(t, &issued)
	now := time.Date(2024, 10, 16, 9, 0, 0, 0, time.UTC)
	a := NewAuth(xhttp.NewClient(), srv.URL, Credentials{AppKey: "key", AppSecret: "secret"},
		10*time.Minute, time.Second, logger.Nop(), WithAuthClock(func() time.Time { return now }))

	tok, err := a.AccessToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(49 * time.Minute)
	tok, err = a.AccessToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)
	assert.Equal(t, int32(1), issued.Load())

	now = now.Add(2 * time.Minute)
	tok, err = a.AccessToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
}

func TestAccessTokenRestoredFromStore(t *testing.T) {
	var issued atomic.Int32
	srv := newAuthServer(t, &issued)
	store := cache.NewTTLCache()
	creds := Credentials{AppKey: "key", AppSecret: "secret"}

	first := NewAuth(xhttp.NewClient(), srv.URL, creds, time.Minute, time.Second, logger.Nop(), WithTokenStore(store))
	_, err := first.AccessToken(t.Context())
	require.NoError(t, err)

	second := NewAuth(xhttp.NewClient(), srv.URL, creds, time.Minute, time.Second, logger.Nop(), WithTokenStore(store))
	tok, err := second.AccessToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)
	assert.Equal(t, int32(1), issued.Load())
}

func TestApprovalKey(t *testing.T) {
	var issued atomic.Int32
	srv := newAuthServer(t, &issued)
	a := NewAuth(xhttp.NewClient(), srv.URL, Credentials{AppKey: "key", AppSecret: "secret"}, time.Minute, time.Second, logger.Nop())

	key, err := a.ApprovalKey(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "approval", key)
}

func TestHandshakeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	a := NewAuth(xhttp.NewClient(), srv.URL, Credentials{AppKey: "key", AppSecret: "secret"}, time.Minute, 50*time.Millisecond, logger.Nop())
	start := time.Now()
	_, err := a.ApprovalKey(t.Context())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
