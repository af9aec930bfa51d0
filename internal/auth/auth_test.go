package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/athanasso/photos-widget/internal/auth"
	"github.com/athanasso/photos-widget/internal/cache/memory"
	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/httpclient"
)

func newTokenServer(t *testing.T, refreshes *atomic.Int64, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "refresh-1" {
			t.Errorf("refresh_token = %q", got)
		}
		refreshes.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient() *httpclient.Client {
	return httpclient.New(&httpclient.Config{TimeoutMS: 5000, MaxResponseBytes: 4096})
}

func TestStaticSource(t *testing.T) {
	tok, err := auth.StaticSource("abc").AccessToken(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("AccessToken = (%q, %v)", tok, err)
	}

	_, err = auth.StaticSource("").AccessToken(context.Background())
	if !faults.Is(err, faults.KindAuth) {
		t.Errorf("empty static source = %v, want auth fault", err)
	}
}

func TestRefreshSourceCachesUntilExpiry(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, http.StatusOK,
		`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	src := auth.NewRefreshSource(newClient(), nil, auth.RefreshConfig{
		TokenEndpoint: srv.URL,
		ClientID:      "client-1",
		RefreshToken:  "refresh-1",
	}, nil).WithClock(func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tok, err := src.AccessToken(ctx)
		if err != nil {
			t.Fatalf("AccessToken %d: %v", i+1, err)
		}
		if tok != "tok-1" {
			t.Errorf("token = %q", tok)
		}
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1 (cached)", got)
	}

	// Cross the skewed expiry boundary: a new refresh must happen.
	now = now.Add(time.Hour)
	if _, err := src.AccessToken(ctx); err != nil {
		t.Fatalf("AccessToken after expiry: %v", err)
	}
	if got := refreshes.Load(); got != 2 {
		t.Errorf("refresh calls = %d, want 2", got)
	}
}

func TestRefreshSourceUsesSharedCache(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, http.StatusOK,
		`{"access_token":"tok-1","expires_in":3600}`)

	c := memory.New(time.Minute, 0)
	defer c.Close()
	cfg := auth.RefreshConfig{TokenEndpoint: srv.URL, RefreshToken: "refresh-1"}

	if _, err := auth.NewRefreshSource(newClient(), c, cfg, nil).AccessToken(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A fresh source instance finds the token in the shared cache.
	tok, err := auth.NewRefreshSource(newClient(), c, cfg, nil).AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-1" {
		t.Errorf("token = %q", tok)
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestRefreshFailureIsAuthFault(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"denied", http.StatusUnauthorized, `{"error":"invalid_grant"}`},
		{"no token in response", http.StatusOK, `{}`},
		{"malformed", http.StatusOK, `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var refreshes atomic.Int64
			srv := newTokenServer(t, &refreshes, tt.status, tt.body)

			src := auth.NewRefreshSource(newClient(), nil, auth.RefreshConfig{
				TokenEndpoint: srv.URL,
				RefreshToken:  "refresh-1",
			}, nil)
			_, err := src.AccessToken(context.Background())
			if !faults.Is(err, faults.KindAuth) {
				t.Errorf("AccessToken = %v, want auth fault", err)
			}
		})
	}
}

func TestNoRefreshTokenConfigured(t *testing.T) {
	src := auth.NewRefreshSource(newClient(), nil, auth.RefreshConfig{
		TokenEndpoint: "https://oauth.example/token",
	}, nil)
	_, err := src.AccessToken(context.Background())
	if !faults.Is(err, faults.KindAuth) {
		t.Errorf("AccessToken = %v, want auth fault", err)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, http.StatusOK,
		`{"access_token":"tok-1","expires_in":3600}`)

	c := memory.New(time.Minute, 0)
	defer c.Close()
	src := auth.NewRefreshSource(newClient(), c, auth.RefreshConfig{
		TokenEndpoint: srv.URL,
		RefreshToken:  "refresh-1",
	}, nil)

	ctx := context.Background()
	if _, err := src.AccessToken(ctx); err != nil {
		t.Fatal(err)
	}
	src.Invalidate(ctx)
	if _, err := src.AccessToken(ctx); err != nil {
		t.Fatal(err)
	}
	if got := refreshes.Load(); got != 2 {
		t.Errorf("refresh calls = %d, want 2 after Invalidate", got)
	}
}
