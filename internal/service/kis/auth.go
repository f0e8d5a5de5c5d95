// Package kis talks to the Korea Investment Open API: OAuth token and approval
// key handshakes, point price lookups and the real-time tick WebSocket.
package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ThemePulse/internal/service/cache"
	xhttp "ThemePulse/pkg/http"
	"ThemePulse/pkg/logger"
)

const tokenCacheKey = "kis:access_token"

// Credentials identify the application against the upstream API.
type Credentials struct {
	AppKey    string
	AppSecret string
}

// Auth issues and caches the access token and acquires per-connection approval keys.
type Auth struct {
	client  *xhttp.Client
	baseURL string
	creds   Credentials
	margin  time.Duration
	timeout time.Duration
	store   cache.BytesCache
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

type AuthOption func(*Auth)

// WithTokenStore persists issued tokens so a restart can reuse them.
func WithTokenStore(s cache.BytesCache) AuthOption {
	return func(a *Auth) { a.store = s }
}

func WithAuthClock(now func() time.Time) AuthOption {
	return func(a *Auth) { a.now = now }
}

func NewAuth(client *xhttp.Client, baseURL string, creds Credentials, refreshMargin, timeout time.Duration, log *logger.Logger, opts ...AuthOption) *Auth {
	a := &Auth{
		client:  client,
		baseURL: baseURL,
		creds:   creds,
		margin:  refreshMargin,
		timeout: timeout,
		log:     log.Component("kis_auth"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type approvalRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	SecretKey string `json:"secretkey"`
}

type approvalResponse struct {
	ApprovalKey string `json:"approval_key"`
}

type storedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// AccessToken returns a token valid for at least the refresh margin, issuing
// a new one when needed.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.valid(now) {
		return a.token, nil
	}
	if a.loadStored(now) {
		return a.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var resp tokenResponse
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    a.baseURL + "/oauth2/tokenP",
		Body: tokenRequest{
			GrantType: "client_credentials",
			AppKey:    a.creds.AppKey,
			AppSecret: a.creds.AppSecret,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("issue access token: empty token in response")
	}

	a.token = resp.AccessToken
	a.expires = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	a.persist(now)
	a.log.Info("access token issued", logger.String("expires", a.expires.Format(time.RFC3339)))
	return a.token, nil
}

// ApprovalKey acquires a fresh WebSocket approval key. Keys are bound to one
// connection and never cached.
func (a *Auth) ApprovalKey(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var resp approvalResponse
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    a.baseURL + "/oauth2/Approval",
		Body: approvalRequest{
			GrantType: "client_credentials",
			AppKey:    a.creds.AppKey,
			SecretKey: a.creds.AppSecret,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("acquire approval key: %w", err)
	}
	if resp.ApprovalKey == "" {
		return "", fmt.Errorf("acquire approval key: empty key in response")
	}
	return resp.ApprovalKey, nil
}

// Headers returns the authenticated headers for a REST call.
func (a *Auth) Headers(ctx context.Context, trID string) (map[string]string, error) {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"authorization": "Bearer " + token,
		"appkey":        a.creds.AppKey,
		"appsecret":     a.creds.AppSecret,
		"tr_id":         trID,
		"custtype":      "P",
		"Content-Type":  "application/json; charset=utf-8",
	}, nil
}

func (a *Auth) valid(now time.Time) bool {
	return a.token != "" && now.Add(a.margin).Before(a.expires)
}

func (a *Auth) loadStored(now time.Time) bool {
	if a.store == nil {
		return false
	}
	b, ok, err := a.store.GetBytes(tokenCacheKey)
	if err != nil {
		a.log.Warn("token store read failed", logger.Error(err))
		return false
	}
	if !ok {
		return false
	}
	var st storedToken
	if err := json.Unmarshal(b, &st); err != nil {
		return false
	}
	a.token, a.expires = st.Token, st.Expires
	if !a.valid(now) {
		a.token, a.expires = "", time.Time{}
		return false
	}
	a.log.Debug("access token restored from store")
	return true
}

func (a *Auth) persist(now time.Time) {
	if a.store == nil {
		return
	}
	ttl := a.expires.Sub(now) - a.margin
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(storedToken{Token: a.token, Expires: a.expires})
	if err != nil {
		return
	}
	if err := a.store.SetBytes(tokenCacheKey, b, ttl); err != nil {
		a.log.Warn("token store write failed", logger.Error(err))
	}
}
