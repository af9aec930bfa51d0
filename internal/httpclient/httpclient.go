// Package httpclient provides a bounded outbound HTTP client for the
// picker API and asset downloads: explicit timeouts, a response size cap,
// no proxy environment, and an optional private-address block for
// remote-supplied download URLs.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrResponseTooLarge = errors.New("response body too large")
	ErrPrivateBlocked   = errors.New("request to private address blocked")
	ErrInvalidURL       = errors.New("invalid URL")
)

// Config controls client behavior. Zero values fall back to defaults.
type Config struct {
	// TimeoutMS is the overall request timeout in milliseconds.
	TimeoutMS int

	// ConnectTimeoutMS is the connection timeout in milliseconds.
	ConnectTimeoutMS int

	// MaxResponseBytes caps response bodies read through ReadAll/GetJSON.
	MaxResponseBytes int64

	// BlockPrivateAddrs refuses dials to loopback, private, and
	// link-local addresses. Download URLs come from a remote service;
	// this keeps them from pointing the client at the local network.
	BlockPrivateAddrs bool

	// InsecureSkipVerify disables TLS verification (dev-only).
	InsecureSkipVerify bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		TimeoutMS:         30000,
		ConnectTimeoutMS:  5000,
		MaxResponseBytes:  32 << 20, // full-resolution photos
		BlockPrivateAddrs: true,
	}
}

// Client is a bounded outbound HTTP client.
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// New creates a new client. The client ignores proxy environment
// variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 30000
	}
	if cfg.ConnectTimeoutMS <= 0 {
		cfg.ConnectTimeoutMS = 5000
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 32 << 20
	}

	c := &Client{cfg: cfg}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cfg.BlockPrivateAddrs {
				if err := checkAddr(addr); err != nil {
					return nil, err
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}

	return c
}

// checkAddr refuses host:port addresses that resolve to non-public IPs.
func checkAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: %s", ErrPrivateBlocked, host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Hostname: the dialer resolves it; checking the literal is all
		// that is possible here without a second lookup.
		return nil
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrPrivateBlocked, ip)
	}
	return nil
}

// Do executes a request after validating its URL scheme.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.URL == nil || (req.URL.Scheme != "http" && req.URL.Scheme != "https") {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, req.URL)
	}
	return c.httpClient.Do(req)
}

// Get performs a GET with optional headers. The caller owns the body.
func (c *Client) Get(ctx context.Context, rawURL string, headers http.Header) (*http.Response, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, headers)
	return c.Do(req)
}

// Delete performs a DELETE with optional headers, discarding the body.
func (c *Client) Delete(ctx context.Context, rawURL string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, headers)
	return c.Do(req)
}

// PostJSON posts a JSON-encoded body.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers http.Header, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, headers)
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

// PostForm posts url-encoded form values.
func (c *Client) PostForm(ctx context.Context, rawURL string, headers http.Header, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	applyHeaders(req, headers)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// ReadAll drains a response body up to the configured cap and closes it.
func (c *Client) ReadAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.cfg.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// DecodeJSON reads a bounded response body into out and closes it.
func (c *Client) DecodeJSON(resp *http.Response, out any) error {
	data, err := c.ReadAll(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func applyHeaders(req *http.Request, headers http.Header) {
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}
