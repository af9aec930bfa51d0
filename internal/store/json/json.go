// Package json implements a JSON file-based state store driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/athanasso/photos-widget/internal/store"
	"github.com/athanasso/photos-widget/internal/widget"
)

const stateFile = "widget_state.json"

func init() {
	store.Register("json", NewDriver)
}

// Options are json-driver settings decoded from the config file.
type Options struct {
	// Indent pretty-prints the state file (handy when poking at it by hand).
	Indent bool `mapstructure:"indent"`
}

// Driver implements store.Driver and widget.StateStore over one JSON file.
type Driver struct {
	dataDir string
	opts    Options

	mu     sync.RWMutex
	closed bool
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}
	var opts Options
	if err := cfg.DecodeOptions(&opts); err != nil {
		return nil, err
	}

	return &Driver{dataDir: cfg.DataDir, opts: opts}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init creates the data directory if absent.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// SaveState atomically replaces the state record on disk.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) SaveState(ctx context.Context, state *widget.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}

	var (
		data []byte
		err  error
	)
	if d.opts.Indent {
		data, err = json.MarshalIndent(state, "", "  ")
	} else {
		data, err = json.Marshal(state)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := filepath.Join(d.dataDir, stateFile)
	tempPath := path + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// LoadState reads the state record, or widget.ErrStateNotFound when the
// file does not exist.
func (d *Driver) LoadState(ctx context.Context) (*widget.State, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}

	data, err := os.ReadFile(filepath.Join(d.dataDir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, widget.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state widget.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// DeleteState removes the state record. Deleting an absent record is not
// an error.
func (d *Driver) DeleteState(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}

	err := os.Remove(filepath.Join(d.dataDir, stateFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ widget.StateStore = (*Driver)(nil)
