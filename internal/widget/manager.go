package widget

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/logutil"
)

// Manager is the rotation state model. It owns every mutation of the
// persisted widget state: wholesale replacement after an acquisition,
// index advancement from the rotation triggers, interval updates, and
// clearing on sign-out.
//
// The store guarantees whole-record atomicity per write; the manager's
// mutex serializes the read-modify-write in Advance so concurrent
// triggers never lose an increment or double-advance.
type Manager struct {
	store  StateStore
	logger *slog.Logger
	clock  func() time.Time

	mu sync.Mutex
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock substitutes the time source (for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a rotation state manager over the given store.
func NewManager(store StateStore, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: logutil.NoopIfNil(logger),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Replace swaps the whole photo set in one step. Observers never see a
// partially-updated set: the previous record stays intact unless the
// store write succeeds. CurrentIndex resets to 0; the rotation interval
// carries over from the previous state.
func (m *Manager) Replace(ctx context.Context, photos []Photo, mode DisplayMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	interval := DefaultIntervalSeconds
	if prev, err := m.load(ctx); err != nil {
		return err
	} else if prev != nil && prev.RotationIntervalSeconds > 0 {
		interval = prev.RotationIntervalSeconds
	}

	next := &State{
		Photos:                  dedupeByID(photos),
		CurrentIndex:            0,
		DisplayMode:             mode,
		RotationIntervalSeconds: interval,
		LastUpdatedAt:           m.clock(),
	}
	if err := m.store.SaveState(ctx, next); err != nil {
		return faults.Wrap(faults.KindPersistence, "replace photo set", err)
	}

	m.logger.Info("photo set replaced",
		"photos", len(next.Photos),
		"mode", string(next.DisplayMode))
	return nil
}

// Advance moves CurrentIndex forward one step with modulo wraparound and
// returns the new index. A set of one photo or fewer is a no-op: the
// index is returned unchanged and nothing is written.
func (m *Manager) Advance(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx)
	if err != nil {
		return 0, err
	}
	if state == nil || len(state.Photos) <= 1 {
		if state == nil {
			return 0, nil
		}
		return state.CurrentIndex, nil
	}

	state.CurrentIndex = (state.CurrentIndex + 1) % len(state.Photos)
	state.LastUpdatedAt = m.clock()
	if err := m.store.SaveState(ctx, state); err != nil {
		return 0, faults.Wrap(faults.KindPersistence, "advance index", err)
	}
	return state.CurrentIndex, nil
}

// Clear empties the photo set and removes cached photo files. Idempotent
// and safe to call before any state was ever written. Cache file removal
// is best-effort: a failed unlink is logged, never propagated.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx)
	if err != nil {
		return err
	}
	if state != nil {
		for _, p := range state.Photos {
			m.removeCached(p.LocalPath)
			m.removeCached(p.ThumbPath)
		}
	}

	if err := m.store.DeleteState(ctx); err != nil {
		return faults.Wrap(faults.KindPersistence, "clear widget state", err)
	}
	return nil
}

// Read returns the current snapshot, or nil when never initialized.
func (m *Manager) Read(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// SetInterval updates the rotation interval only. Values below the user
// floor fail with a validation error. Setting an interval before the
// first acquisition initializes an empty record so the setting survives.
func (m *Manager) SetInterval(ctx context.Context, seconds int) error {
	if seconds < MinIntervalSeconds {
		return faults.Newf(faults.KindValidation,
			"rotation interval %ds is below the %ds floor", seconds, MinIntervalSeconds)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{DisplayMode: ModeSingle}
	}
	state.RotationIntervalSeconds = seconds
	state.LastUpdatedAt = m.clock()
	if err := m.store.SaveState(ctx, state); err != nil {
		return faults.Wrap(faults.KindPersistence, "set rotation interval", err)
	}
	return nil
}

// SetMode updates the display mode only, preserving the photo set and index.
func (m *Manager) SetMode(ctx context.Context, mode DisplayMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{RotationIntervalSeconds: DefaultIntervalSeconds}
	}
	state.DisplayMode = mode
	state.LastUpdatedAt = m.clock()
	if err := m.store.SaveState(ctx, state); err != nil {
		return faults.Wrap(faults.KindPersistence, "set display mode", err)
	}
	return nil
}

// load maps the store's absent sentinel to a nil state.
func (m *Manager) load(ctx context.Context) (*State, error) {
	state, err := m.store.LoadState(ctx)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, nil
		}
		return nil, faults.Wrap(faults.KindPersistence, "load widget state", err)
	}
	return state, nil
}

func (m *Manager) removeCached(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("cached photo not removed", "path", path, "error", err)
	}
}

// dedupeByID keeps insertion order; on id collision the last write wins.
func dedupeByID(photos []Photo) []Photo {
	seen := make(map[string]int, len(photos))
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if i, ok := seen[p.ID]; ok {
			out[i] = p
			continue
		}
		seen[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
