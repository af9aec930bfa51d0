// Package sqlite implements a SQLite-based state store driver using GORM.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/athanasso/photos-widget/internal/store"
	"github.com/athanasso/photos-widget/internal/widget"
)

// The widget state is a single record; it always occupies this row.
const stateRowID = 1

func init() {
	store.Register("sqlite", NewDriver)
}

// stateRow is the GORM model for the widget state record. The photo set
// is stored as a JSON-encoded column: the record is read and written
// wholesale, so there is nothing to gain from a relational photo table.
type stateRow struct {
	ID                      int    `gorm:"primaryKey"`
	Photos                  string `gorm:"column:photos"`
	CurrentIndex            int    `gorm:"column:current_index"`
	DisplayMode             string `gorm:"column:display_mode"`
	RotationIntervalSeconds int    `gorm:"column:rotation_interval_seconds"`
	LastUpdatedAt           int64  `gorm:"column:last_updated_at"`
}

func (stateRow) TableName() string { return "widget_state" }

// Driver implements store.Driver and widget.StateStore using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{dataDir: cfg.DataDir}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "widget.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(&stateRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveState upserts the single state row in one statement.
func (d *Driver) SaveState(ctx context.Context, state *widget.State) error {
	if d.db == nil {
		return store.ErrClosed
	}

	photos, err := json.Marshal(state.Photos)
	if err != nil {
		return fmt.Errorf("failed to marshal photos: %w", err)
	}

	row := &stateRow{
		ID:                      stateRowID,
		Photos:                  string(photos),
		CurrentIndex:            state.CurrentIndex,
		DisplayMode:             string(state.DisplayMode),
		RotationIntervalSeconds: state.RotationIntervalSeconds,
		LastUpdatedAt:           state.LastUpdatedAt.Unix(),
	}

	result := d.db.WithContext(ctx).Save(row)
	return result.Error
}

// LoadState retrieves the state row, mapping absence to widget.ErrStateNotFound.
func (d *Driver) LoadState(ctx context.Context) (*widget.State, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}

	var row stateRow
	result := d.db.WithContext(ctx).First(&row, "id = ?", stateRowID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, widget.ErrStateNotFound
		}
		return nil, result.Error
	}

	var photos []widget.Photo
	if row.Photos != "" {
		if err := json.Unmarshal([]byte(row.Photos), &photos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photos: %w", err)
		}
	}

	return &widget.State{
		Photos:                  photos,
		CurrentIndex:            row.CurrentIndex,
		DisplayMode:             widget.DisplayMode(row.DisplayMode),
		RotationIntervalSeconds: row.RotationIntervalSeconds,
		LastUpdatedAt:           time.Unix(row.LastUpdatedAt, 0).UTC(),
	}, nil
}

// DeleteState removes the state row. Deleting an absent row is not an error.
func (d *Driver) DeleteState(ctx context.Context) error {
	if d.db == nil {
		return store.ErrClosed
	}

	result := d.db.WithContext(ctx).Delete(&stateRow{}, "id = ?", stateRowID)
	return result.Error
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ widget.StateStore = (*Driver)(nil)
