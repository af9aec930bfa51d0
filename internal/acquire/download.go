package acquire

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	// Decoders for the image formats the picker hands out.
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/athanasso/photos-widget/internal/auth"
	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/httpclient"
	"github.com/athanasso/photos-widget/internal/logutil"
	"github.com/athanasso/photos-widget/internal/picker"
	"github.com/athanasso/photos-widget/internal/widget"
)

// Downloader fetches one selected media item into the local cache.
type Downloader interface {
	Download(ctx context.Context, item picker.MediaItem) (widget.Photo, error)
}

// AssetDownloader writes assets to a cache directory keyed by item id
// and produces a widget-sized thumbnail alongside each original.
type AssetDownloader struct {
	client   *httpclient.Client
	tokens   auth.TokenSource
	cacheDir string
	timeout  time.Duration
	thumbPx  uint
	logger   *slog.Logger
}

// DownloaderConfig configures an AssetDownloader.
type DownloaderConfig struct {
	// CacheDir is the dedicated local cache subdirectory for photo files.
	CacheDir string

	// Timeout bounds each item download. Zero means 30s.
	Timeout time.Duration

	// ThumbMaxPx is the thumbnail bounding box. Zero means 512.
	ThumbMaxPx uint
}

// NewAssetDownloader creates a downloader.
func NewAssetDownloader(client *httpclient.Client, tokens auth.TokenSource, cfg DownloaderConfig, logger *slog.Logger) *AssetDownloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ThumbMaxPx == 0 {
		cfg.ThumbMaxPx = widget.DefaultWidth
	}
	return &AssetDownloader{
		client:   client,
		tokens:   tokens,
		cacheDir: cfg.CacheDir,
		timeout:  cfg.Timeout,
		thumbPx:  cfg.ThumbMaxPx,
		logger:   logutil.NoopIfNil(logger),
	}
}

// Download fetches one item under a per-item timeout. The credential is
// re-fetched per item because a batch can span a refresh boundary.
func (d *AssetDownloader) Download(ctx context.Context, item picker.MediaItem) (widget.Photo, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	token, err := d.tokens.AccessToken(ctx)
	if err != nil {
		return widget.Photo{}, err
	}

	if err := os.MkdirAll(d.cacheDir, 0700); err != nil {
		return widget.Photo{}, faults.Wrap(faults.KindPersistence, "create cache dir", err)
	}

	// The "=d" suffix requests the full-resolution bytes rather than a
	// server-side preview.
	resp, err := d.client.Get(ctx, item.BaseURL+"=d", auth.BearerHeader(token))
	if err != nil {
		return widget.Photo{}, faults.Wrap(faults.KindTransport, "download media item", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return widget.Photo{}, faults.Newf(faults.KindTransport, "download returned %d", resp.StatusCode)
	}

	data, err := d.client.ReadAll(resp)
	if err != nil {
		return widget.Photo{}, faults.Wrap(faults.KindTransport, "read media item body", err)
	}

	localPath := filepath.Join(d.cacheDir, item.ID+extFor(item.MimeType))
	if err := os.WriteFile(localPath, data, 0600); err != nil {
		return widget.Photo{}, faults.Wrap(faults.KindPersistence, "write cached photo", err)
	}

	width, height := dimensions(data, item)
	photo := widget.Photo{
		ID:        item.ID,
		Source:    widget.RemoteSource(item.BaseURL),
		LocalPath: localPath,
		Width:     width,
		Height:    height,
	}

	// Thumbnail generation is best-effort: the host can always fall
	// back to the full-size cached copy.
	if thumbPath, err := d.writeThumb(item.ID, data); err != nil {
		d.logger.Warn("thumbnail not generated", "item_id", item.ID, "error", err)
	} else {
		photo.ThumbPath = thumbPath
	}

	return photo, nil
}

// dimensions decodes the image header, falling back to picker-reported
// metadata and then to the 512x512 default.
func dimensions(data []byte, item picker.MediaItem) (int, int) {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width, cfg.Height
	}
	if item.Width > 0 && item.Height > 0 {
		return item.Width, item.Height
	}
	return widget.DefaultWidth, widget.DefaultHeight
}

func (d *AssetDownloader) writeThumb(itemID string, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	thumb := resize.Thumbnail(d.thumbPx, d.thumbPx, img, resize.Lanczos3)
	path := filepath.Join(d.cacheDir, itemID+"_thumb.jpg")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(f, thumb, &jpeg.Options{Quality: 85}); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// extFor maps picker mime types to cache file extensions.
func extFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// Compile-time interface check
var _ Downloader = (*AssetDownloader)(nil)
