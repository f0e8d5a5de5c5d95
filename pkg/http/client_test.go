package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("appkey"))
		assert.Equal(t, "J", r.URL.Query().Get("div"))
		assert.Equal(t, "themepulse", r.Header.Get("User-Agent"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["grant_type"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodPost,
		URL:         srv.URL,
		Headers:     map[string]string{"appkey": "abc"},
		QueryParams: map[string]string{"div": "J"},
		Body:        map[string]string{"grant_type": "client_credentials"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "client_credentials", out.Echo)
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(strings.Repeat("x", 2*errorBodyLimit)))
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Len(t, se.Body, errorBodyLimit)
}

func TestSendAndParseRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw"))
	}))
	defer srv.Close()

	var raw []byte
	require.NoError(t, NewClient(WithUserAgent("t")).SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &raw))
	assert.Equal(t, "raw", string(raw))
}
