package acquire

import (
	"context"
	"image"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/logutil"
	"github.com/athanasso/photos-widget/internal/widget"
)

// LocalImporter commits photos already present on the device, without
// going through a picker session.
type LocalImporter struct {
	committer Committer
	logger    *slog.Logger
}

// NewLocalImporter creates an importer.
func NewLocalImporter(committer Committer, logger *slog.Logger) *LocalImporter {
	return &LocalImporter{committer: committer, logger: logutil.NoopIfNil(logger)}
}

// Import validates the given file paths and replaces the widget photo
// set with them. Unreadable paths fail the whole import because the
// caller named them explicitly.
func (li *LocalImporter) Import(ctx context.Context, paths []string, mode widget.DisplayMode) ([]widget.Photo, error) {
	if len(paths) == 0 {
		return nil, faults.New(faults.KindValidation, "no paths given")
	}

	photos := make([]widget.Photo, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, faults.Wrap(faults.KindValidation, "open local photo", err)
		}
		width, height := widget.DefaultWidth, widget.DefaultHeight
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			width, height = cfg.Width, cfg.Height
		} else {
			li.logger.Warn("local photo dimensions unknown", "path", path, "error", err)
		}
		f.Close()

		photos = append(photos, widget.Photo{
			ID:     uuid.NewString(),
			Source: widget.LocalSource(path),
			Width:  width,
			Height: height,
		})
	}

	if err := li.committer.Replace(ctx, photos, mode); err != nil {
		return nil, err
	}
	li.logger.Info("local photos imported", "count", len(photos))
	return photos, nil
}
