// Package auth provides the credential provider for the picker API.
// The workflow only ever asks for a currently-valid access token; token
// refresh and caching stay behind the TokenSource interface.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/athanasso/photos-widget/internal/cache"
	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/httpclient"
	"github.com/athanasso/photos-widget/internal/logutil"
)

// TokenSource returns a currently-valid access token. An empty token is
// never returned: callers either get a usable credential or an auth fault.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticSource returns a fixed token. Used in tests and local dev mode.
type StaticSource string

func (s StaticSource) AccessToken(ctx context.Context) (string, error) {
	if s == "" {
		return "", faults.New(faults.KindAuth, "no access token configured")
	}
	return string(s), nil
}

// expirySkew refreshes tokens slightly before the provider-reported
// expiry so an in-flight download never crosses the boundary.
const expirySkew = 30 * time.Second

const tokenCacheKey = "auth:access_token"

// RefreshSource exchanges a long-lived refresh token for access tokens
// at an OAuth token endpoint, caching the result until expiry.
type RefreshSource struct {
	client        *httpclient.Client
	cache         cache.Cache
	logger        *slog.Logger
	tokenEndpoint string
	clientID      string
	clientSecret  string
	refreshToken  string
	clock         func() time.Time

	// single-flight: one refresh at a time, others wait for the result
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// RefreshConfig configures a RefreshSource.
type RefreshConfig struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	RefreshToken  string
}

// NewRefreshSource creates a refresh-token-backed source. The cache is
// optional; when present, tokens survive across source instances.
func NewRefreshSource(client *httpclient.Client, c cache.Cache, cfg RefreshConfig, logger *slog.Logger) *RefreshSource {
	return &RefreshSource{
		client:        client,
		cache:         c,
		logger:        logutil.NoopIfNil(logger),
		tokenEndpoint: cfg.TokenEndpoint,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		refreshToken:  cfg.RefreshToken,
		clock:         time.Now,
	}
}

// WithClock substitutes the time source (for tests).
func (s *RefreshSource) WithClock(clock func() time.Time) *RefreshSource {
	s.clock = clock
	return s
}

// AccessToken returns the cached token while valid, refreshing otherwise.
func (s *RefreshSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if s.token != "" && now.Before(s.expiresAt.Add(-expirySkew)) {
		return s.token, nil
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, tokenCacheKey); err == nil && len(data) > 0 {
			// Cache TTL already accounts for the skew.
			s.token = string(data)
			s.expiresAt = now.Add(expirySkew + time.Minute)
			return s.token, nil
		}
	}

	token, expiresIn, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = now.Add(expiresIn)
	if s.cache != nil {
		ttl := expiresIn - expirySkew
		if ttl <= 0 {
			ttl = expiresIn
		}
		if err := s.cache.Set(ctx, tokenCacheKey, []byte(token), ttl); err != nil {
			s.logger.Warn("access token not cached", "error", err)
		}
	}
	return token, nil
}

// Invalidate drops the cached token, forcing a refresh on next use.
// Called on sign-out and when the picker API rejects the credential.
func (s *RefreshSource) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, tokenCacheKey); err != nil {
			s.logger.Warn("token cache entry not deleted", "error", err)
		}
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *RefreshSource) refresh(ctx context.Context) (string, time.Duration, error) {
	if s.refreshToken == "" {
		return "", 0, faults.New(faults.KindAuth, "no refresh token configured")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.refreshToken},
		"client_id":     {s.clientID},
	}
	if s.clientSecret != "" {
		form.Set("client_secret", s.clientSecret)
	}

	resp, err := s.client.PostForm(ctx, s.tokenEndpoint, nil, form)
	if err != nil {
		return "", 0, faults.Wrap(faults.KindAuth, "token refresh request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return "", 0, faults.Newf(faults.KindAuth, "token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := s.client.DecodeJSON(resp, &tr); err != nil {
		return "", 0, faults.Wrap(faults.KindAuth, "token response malformed", err)
	}
	if tr.AccessToken == "" {
		return "", 0, faults.New(faults.KindAuth, "token endpoint returned no access token")
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}

	s.logger.Debug("access token refreshed", "expires_in", expiresIn)
	return tr.AccessToken, expiresIn, nil
}

// BearerHeader builds the Authorization header for a token.
func BearerHeader(token string) http.Header {
	return http.Header{"Authorization": []string{fmt.Sprintf("Bearer %s", token)}}
}

// Compile-time interface checks
var _ TokenSource = StaticSource("")
var _ TokenSource = (*RefreshSource)(nil)
