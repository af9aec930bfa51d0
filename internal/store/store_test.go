package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/athanasso/photos-widget/internal/store"
	"github.com/athanasso/photos-widget/internal/widget"

	_ "github.com/athanasso/photos-widget/internal/store/json"
	_ "github.com/athanasso/photos-widget/internal/store/sqlite"
)

// testState builds a representative widget state record.
func testState() *widget.State {
	return &widget.State{
		Photos: []widget.Photo{
			{
				ID:        "item-1",
				Source:    widget.RemoteSource("https://photos.example/item-1=d"),
				LocalPath: "/cache/item-1.jpg",
				ThumbPath: "/cache/item-1_thumb.jpg",
				Width:     1024,
				Height:    768,
			},
			{
				ID:     "item-2",
				Source: widget.LocalSource("/device/DCIM/照片.jpg"),
				Width:  widget.DefaultWidth,
				Height: widget.DefaultHeight,
			},
		},
		CurrentIndex:            1,
		DisplayMode:             widget.ModeSlideshow,
		RotationIntervalSeconds: 30,
		LastUpdatedAt:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// runDriverTests runs the standard suite against a driver.
func runDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	ss, ok := driver.(widget.StateStore)
	if !ok {
		t.Fatalf("%s driver does not implement widget.StateStore", driverName)
	}

	// Load before any write reports absence.
	if _, err := ss.LoadState(ctx); !errors.Is(err, widget.ErrStateNotFound) {
		t.Errorf("LoadState on fresh store = %v, want ErrStateNotFound", err)
	}

	// Delete before any write is not an error.
	if err := ss.DeleteState(ctx); err != nil {
		t.Errorf("DeleteState on fresh store: %v", err)
	}

	// Round trip.
	want := testState()
	if err := ss.SaveState(ctx, want); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	got, err := ss.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	assertStateEqual(t, got, want)

	// Whole-record overwrite.
	want.Photos = want.Photos[:1]
	want.CurrentIndex = 0
	want.DisplayMode = widget.ModeSingle
	if err := ss.SaveState(ctx, want); err != nil {
		t.Fatalf("SaveState overwrite: %v", err)
	}
	got, err = ss.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState after overwrite: %v", err)
	}
	assertStateEqual(t, got, want)

	// Delete is idempotent.
	for i := 0; i < 2; i++ {
		if err := ss.DeleteState(ctx); err != nil {
			t.Fatalf("DeleteState call %d: %v", i+1, err)
		}
	}
	if _, err := ss.LoadState(ctx); !errors.Is(err, widget.ErrStateNotFound) {
		t.Errorf("LoadState after delete = %v, want ErrStateNotFound", err)
	}
}

func assertStateEqual(t *testing.T, got, want *widget.State) {
	t.Helper()
	if len(got.Photos) != len(want.Photos) {
		t.Fatalf("len(Photos) = %d, want %d", len(got.Photos), len(want.Photos))
	}
	for i := range want.Photos {
		if got.Photos[i] != want.Photos[i] {
			t.Errorf("Photos[%d] = %+v, want %+v", i, got.Photos[i], want.Photos[i])
		}
	}
	if got.CurrentIndex != want.CurrentIndex {
		t.Errorf("CurrentIndex = %d, want %d", got.CurrentIndex, want.CurrentIndex)
	}
	if got.DisplayMode != want.DisplayMode {
		t.Errorf("DisplayMode = %q, want %q", got.DisplayMode, want.DisplayMode)
	}
	if got.RotationIntervalSeconds != want.RotationIntervalSeconds {
		t.Errorf("RotationIntervalSeconds = %d, want %d", got.RotationIntervalSeconds, want.RotationIntervalSeconds)
	}
	if !got.LastUpdatedAt.Equal(want.LastUpdatedAt) {
		t.Errorf("LastUpdatedAt = %v, want %v", got.LastUpdatedAt, want.LastUpdatedAt)
	}
}

func TestJSONDriver(t *testing.T) {
	runDriverTests(t, "json", &store.DriverConfig{
		Driver:  "json",
		DataDir: t.TempDir(),
		Options: map[string]any{"indent": true},
	})
}

func TestSQLiteDriver(t *testing.T) {
	runDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestUnknownDriver(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "etcd"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestAvailableDrivers(t *testing.T) {
	names := store.AvailableDrivers()
	want := map[string]bool{"json": false, "sqlite": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Errorf("driver %q not registered", n)
		}
	}
}

func TestJSONDriverPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &store.DriverConfig{Driver: "json", DataDir: dir}

	d1, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := d1.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d1.(widget.StateStore).SaveState(ctx, testState()); err != nil {
		t.Fatal(err)
	}
	if err := d1.Close(); err != nil {
		t.Fatal(err)
	}

	d2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Close()
	if err := d2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := d2.(widget.StateStore).LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState after reopen: %v", err)
	}
	assertStateEqual(t, got, testState())
}
