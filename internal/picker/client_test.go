package picker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/athanasso/photos-widget/internal/auth"
	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/httpclient"
	"github.com/athanasso/photos-widget/internal/picker"
)

func newTestClient(t *testing.T, handler http.Handler) *picker.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	hc := httpclient.New(&httpclient.Config{TimeoutMS: 5000, MaxResponseBytes: 1 << 20})
	return picker.NewClient(hc, auth.StaticSource("tok-1"), picker.Config{
		BaseURL:  srv.URL + "/v1",
		PageSize: 2,
	}, nil)
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestCreateSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "sess-1",
			"pickerUri":  "https://photos.example/picker/sess-1",
			"expireTime": "2026-01-02T04:04:05Z",
		})
	}))

	s, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID != "sess-1" || s.PickerURI != "https://photos.example/picker/sess-1" {
		t.Errorf("session = %+v", s)
	}
	if s.MediaItemsSet {
		t.Error("new session reports MediaItemsSet")
	}
	if s.ExpireTime.IsZero() {
		t.Error("expire time not parsed")
	}
}

func TestGetSessionReady(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if r.URL.Path != "/v1/sessions/sess-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "sess-1", "mediaItemsSet": true})
	}))

	s, err := c.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !s.MediaItemsSet {
		t.Error("MediaItemsSet = false, want true")
	}
}

func TestDeleteSession(t *testing.T) {
	var deletes int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if r.Method == http.MethodDelete && r.URL.Path == "/v1/sessions/sess-1" {
			deletes++
			w.WriteHeader(http.StatusNoContent)
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))

	if err := c.DeleteSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if deletes != 1 {
		t.Errorf("deletes = %d, want 1", deletes)
	}
}

func TestDeleteSessionAlreadyGone(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	// An already-deleted session is acceptable cleanup.
	if err := c.DeleteSession(context.Background(), "sess-1"); err != nil {
		t.Errorf("DeleteSession on 404 = %v, want nil", err)
	}
}

func TestListMediaItemsPagination(t *testing.T) {
	item := func(id string) map[string]any {
		return map[string]any{
			"id": id,
			"mediaFile": map[string]any{
				"baseUrl":  "https://photos.example/" + id,
				"mimeType": "image/jpeg",
				"mediaFileMetadata": map[string]any{
					"width": 800, "height": 600,
				},
			},
		}
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if got := r.URL.Query().Get("sessionId"); got != "sess-1" {
			t.Errorf("sessionId = %q", got)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"mediaItems":    []any{item("a"), item("b")},
				"nextPageToken": "page-2",
			})
		case "page-2":
			json.NewEncoder(w).Encode(map[string]any{
				"mediaItems": []any{item("c")},
			})
		default:
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
		}
	}))

	items, err := c.ListMediaItems(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ListMediaItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	wantIDs := []string{"a", "b", "c"}
	for i, it := range items {
		if it.ID != wantIDs[i] {
			t.Errorf("items[%d].ID = %q, want %q (order preserved)", i, it.ID, wantIDs[i])
		}
	}
	if items[0].Width != 800 || items[0].Height != 600 {
		t.Errorf("dimensions = %dx%d", items[0].Width, items[0].Height)
	}
}

func TestUnauthorizedMapsToAuthFault(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.CreateSession(context.Background()); !faults.Is(err, faults.KindAuth) {
		t.Errorf("CreateSession = %v, want auth fault", err)
	}
}

func TestServerErrorMapsToTransportFault(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	if _, err := c.GetSession(context.Background(), "sess-1"); !faults.Is(err, faults.KindTransport) {
		t.Errorf("GetSession = %v, want transport fault", err)
	}
}

func TestRunawayPaginationAborts(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always hand back another page token.
		fmt.Fprint(w, `{"mediaItems":[],"nextPageToken":"again"}`)
	}))

	if _, err := c.ListMediaItems(context.Background(), "sess-1"); !faults.Is(err, faults.KindTransport) {
		t.Errorf("ListMediaItems = %v, want transport fault", err)
	}
}
