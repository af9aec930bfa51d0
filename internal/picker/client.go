// Package picker is the client for the remote photo picker session API:
// session lifecycle (create, poll, delete) and listing the media items
// the user selected.
package picker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/athanasso/photos-widget/internal/auth"
	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/httpclient"
	"github.com/athanasso/photos-widget/internal/logutil"
)

// maxPages bounds nextPageToken following; selections are small, so
// hitting this cap means the remote is misbehaving.
const maxPages = 20

// Sessions is the picker API surface the acquisition workflow consumes.
type Sessions interface {
	CreateSession(ctx context.Context) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListMediaItems(ctx context.Context, sessionID string) ([]MediaItem, error)
}

// Client talks to the picker service over the bounded HTTP client,
// attaching a fresh bearer token per request.
type Client struct {
	httpClient *httpclient.Client
	tokens     auth.TokenSource
	baseURL    string
	pageSize   int
	logger     *slog.Logger
}

// Config configures a picker client.
type Config struct {
	// BaseURL is the picker API root, e.g.
	// "https://photospicker.googleapis.com/v1".
	BaseURL string

	// PageSize for media item listing. Zero uses the service default.
	PageSize int
}

// NewClient builds a picker session client.
func NewClient(httpClient *httpclient.Client, tokens auth.TokenSource, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		baseURL:    cfg.BaseURL,
		pageSize:   cfg.PageSize,
		logger:     logutil.NoopIfNil(logger),
	}
}

// CreateSession opens a new picker session.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/sessions", headers, nil)
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, "create picker session", err)
	}
	if err := c.checkStatus(resp, "create session"); err != nil {
		return nil, err
	}

	var sr sessionResponse
	if err := c.httpClient.DecodeJSON(resp, &sr); err != nil {
		return nil, faults.Wrap(faults.KindTransport, "decode picker session", err)
	}
	if sr.ID == "" {
		return nil, faults.New(faults.KindTransport, "picker session missing id")
	}

	c.logger.Debug("picker session created", "session_id", sr.ID)
	return sr.toSession(), nil
}

// GetSession fetches the session's current state; the workflow polls
// this for MediaItemsSet.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(ctx, c.sessionURL(sessionID), headers)
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, "poll picker session", err)
	}
	if err := c.checkStatus(resp, "get session"); err != nil {
		return nil, err
	}

	var sr sessionResponse
	if err := c.httpClient.DecodeJSON(resp, &sr); err != nil {
		return nil, faults.Wrap(faults.KindTransport, "decode picker session", err)
	}
	return sr.toSession(), nil
}

// DeleteSession requests remote deletion of the session. Mandatory
// cleanup at workflow end, success or failure.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Delete(ctx, c.sessionURL(sessionID), headers)
	if err != nil {
		return faults.Wrap(faults.KindTransport, "delete picker session", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return faults.Newf(faults.KindTransport, "delete session returned %d", resp.StatusCode)
	}
	return nil
}

// ListMediaItems returns the selected items in selection order,
// following pagination tokens up to a fixed page cap.
func (c *Client) ListMediaItems(ctx context.Context, sessionID string) ([]MediaItem, error) {
	var items []MediaItem
	pageToken := ""

	for page := 0; page < maxPages; page++ {
		headers, err := c.authHeaders(ctx)
		if err != nil {
			return nil, err
		}

		q := url.Values{"sessionId": {sessionID}}
		if c.pageSize > 0 {
			q.Set("pageSize", fmt.Sprintf("%d", c.pageSize))
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		resp, err := c.httpClient.Get(ctx, c.baseURL+"/mediaItems?"+q.Encode(), headers)
		if err != nil {
			return nil, faults.Wrap(faults.KindTransport, "list media items", err)
		}
		if err := c.checkStatus(resp, "list media items"); err != nil {
			return nil, err
		}

		var body struct {
			MediaItems    []mediaItemResponse `json:"mediaItems"`
			NextPageToken string              `json:"nextPageToken"`
		}
		if err := c.httpClient.DecodeJSON(resp, &body); err != nil {
			return nil, faults.Wrap(faults.KindTransport, "decode media items", err)
		}

		for i := range body.MediaItems {
			items = append(items, body.MediaItems[i].toMediaItem())
		}

		if body.NextPageToken == "" {
			return items, nil
		}
		pageToken = body.NextPageToken
	}

	return nil, faults.Newf(faults.KindTransport, "media item listing exceeded %d pages", maxPages)
}

func (c *Client) sessionURL(sessionID string) string {
	return c.baseURL + "/sessions/" + url.PathEscape(sessionID)
}

// authHeaders fetches a fresh token from the source for every request:
// a long poll or download batch can span a credential refresh boundary.
func (c *Client) authHeaders(ctx context.Context) (http.Header, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return auth.BearerHeader(token), nil
}

// checkStatus maps non-2xx responses to taxonomy faults and drains the body.
func (c *Client) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return faults.Newf(faults.KindAuth, "%s rejected with %d", op, resp.StatusCode)
	}
	return faults.Newf(faults.KindTransport, "%s returned %d", op, resp.StatusCode)
}

// Compile-time interface check
var _ Sessions = (*Client)(nil)
