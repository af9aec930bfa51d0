// Package store provides the durable widget-state persistence layer:
// a driver registry plus the Driver lifecycle interface. Concrete
// backends live in subpackages (json, sqlite) and register themselves
// at init time.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Common errors for store operations.
var (
	ErrClosed = errors.New("store closed")
)

// Driver defines the lifecycle of a persistence backend.
// Implementations must be safe for concurrent use, must persist the
// widget state record as one atomic whole-record write, and must also
// satisfy widget.StateStore.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (json, sqlite).
	Name() string
}

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: json, sqlite
	Driver string `json:"driver"`

	// DataDir is the directory for data files (json file, sqlite db)
	DataDir string `json:"data_dir"`

	// Options carries driver-specific settings from the config file.
	Options map[string]any `json:"options"`
}

// DecodeOptions maps the raw Options into a driver-specific struct
// using mapstructure tags.
func (c *DriverConfig) DecodeOptions(target any) error {
	if c.Options == nil {
		return nil
	}
	if err := mapstructure.Decode(c.Options, target); err != nil {
		return fmt.Errorf("decode %s driver options: %w", c.Driver, err)
	}
	return nil
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// AvailableDrivers returns the list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
