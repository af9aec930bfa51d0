// Package widget owns the persisted widget state record and the rotation
// state model that mutates it. The platform widget host only ever reads a
// serialized snapshot of State; all writes go through Manager.
package widget

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStateNotFound is returned by StateStore.LoadState when no state
// record has ever been written.
var ErrStateNotFound = errors.New("widget state not found")

// Default pixel dimensions used when an asset's size is unknown.
const (
	DefaultWidth  = 512
	DefaultHeight = 512
)

// Rotation interval floors in seconds.
const (
	// MinIntervalSeconds is the floor for user-settable intervals.
	MinIntervalSeconds = 5

	// ReliableFloorSeconds is the platform-imposed floor for the
	// high-reliability timed rotation path.
	ReliableFloorSeconds = 10

	// DefaultIntervalSeconds is applied when no interval was ever set.
	DefaultIntervalSeconds = 30
)

// DisplayMode selects how the widget presents the photo set.
type DisplayMode string

const (
	ModeSingle    DisplayMode = "single"
	ModeSlideshow DisplayMode = "slideshow"
)

// ParseDisplayMode parses a mode string, rejecting unknown values.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch DisplayMode(s) {
	case ModeSingle, ModeSlideshow:
		return DisplayMode(s), nil
	case "":
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("invalid display mode %q: must be single or slideshow", s)
	}
}

// SourceKind tags the authoritative origin of a photo.
type SourceKind string

const (
	SourceRemote SourceKind = "remote"
	SourceLocal  SourceKind = "local"
)

// Source is a tagged variant: exactly one of URL or Path is set,
// according to Kind. Remote references are pre-signed and expire
// (roughly an hour for cloud picker URLs), so a populated Photo.LocalPath
// is always authoritative over a remote Source.
type Source struct {
	Kind SourceKind `json:"kind"`
	URL  string     `json:"url,omitempty"`
	Path string     `json:"path,omitempty"`
}

// RemoteSource builds a remote (expiring URL) source.
func RemoteSource(url string) Source {
	return Source{Kind: SourceRemote, URL: url}
}

// LocalSource builds a local file-path source.
func LocalSource(path string) Source {
	return Source{Kind: SourceLocal, Path: path}
}

// Ref returns the location string for the active variant.
func (s Source) Ref() string {
	if s.Kind == SourceLocal {
		return s.Path
	}
	return s.URL
}

// Photo is one selected image. Immutable after creation except for being
// removed from the owning photo set.
type Photo struct {
	ID        string `json:"id"`
	Source    Source `json:"source"`
	LocalPath string `json:"local_path,omitempty"`
	ThumbPath string `json:"thumb_path,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// RenderRef returns the reference the host should render from: the local
// cached copy when present, otherwise the source reference.
func (p Photo) RenderRef() string {
	if p.LocalPath != "" {
		return p.LocalPath
	}
	return p.Source.Ref()
}

// State is the single persisted record consumed by the render step.
type State struct {
	Photos                  []Photo     `json:"photos"`
	CurrentIndex            int         `json:"current_index"`
	DisplayMode             DisplayMode `json:"display_mode"`
	RotationIntervalSeconds int         `json:"rotation_interval_seconds"`
	LastUpdatedAt           time.Time   `json:"last_updated_at"`
}

// EffectiveMode resolves the display mode actually in force: slideshow
// with one photo or fewer behaves as single.
func (s *State) EffectiveMode() DisplayMode {
	if s.DisplayMode == ModeSlideshow && len(s.Photos) > 1 {
		return ModeSlideshow
	}
	return ModeSingle
}

// Current returns the photo at CurrentIndex, or false when the set is empty.
func (s *State) Current() (Photo, bool) {
	if len(s.Photos) == 0 {
		return Photo{}, false
	}
	return s.Photos[s.CurrentIndex], true
}

// StateStore is the durable store contract for the single widget state
// record. Implementations must make SaveState a whole-record atomic
// write and must be safe for concurrent use; LoadState returns
// ErrStateNotFound when no record exists; DeleteState is idempotent.
type StateStore interface {
	SaveState(ctx context.Context, state *State) error
	LoadState(ctx context.Context) (*State, error)
	DeleteState(ctx context.Context) error
}
