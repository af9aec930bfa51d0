// Package rotate turns timer ticks and host widget events into photo
// advances and render requests.
package rotate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/logutil"
	"github.com/athanasso/photos-widget/internal/widget"
)

// Renderer asks the host surface to redraw the widget. Implementations
// push to whatever display layer embeds this service.
type Renderer interface {
	RequestRender(ctx context.Context) error
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ctx context.Context) error

func (f RenderFunc) RequestRender(ctx context.Context) error { return f(ctx) }

// Advancer moves the rotation forward one photo. *widget.Manager
// satisfies it.
type Advancer interface {
	Advance(ctx context.Context) (int, error)
}

// Trigger is the single rotation firing: advance once, then request one
// render. A failed advance skips the render so the widget never shows a
// frame the store did not accept; the next firing retries naturally.
type Trigger struct {
	advancer Advancer
	renderer Renderer
	logger   *slog.Logger
}

// NewTrigger creates a trigger.
func NewTrigger(advancer Advancer, renderer Renderer, logger *slog.Logger) *Trigger {
	return &Trigger{advancer: advancer, renderer: renderer, logger: logutil.NoopIfNil(logger)}
}

// Fire performs one advance and one render request. Errors are returned
// for observability but callers on timer paths only log them.
func (t *Trigger) Fire(ctx context.Context) error {
	if _, err := t.advancer.Advance(ctx); err != nil {
		t.logger.Warn("advance failed, render skipped", "error", err)
		return err
	}
	if err := t.renderer.RequestRender(ctx); err != nil {
		t.logger.Warn("render request failed", "error", err)
		return err
	}
	return nil
}

// Scheduler drives periodic rotation with two tickers. The reliable
// ticker never runs faster than its floor; the best-effort ticker runs
// at the configured interval and may be disabled. Start and Stop are
// explicit so the process owns registration state instead of relying on
// package side effects.
type Scheduler struct {
	trigger       *Trigger
	reliableFloor time.Duration
	bestEffort    bool
	logger        *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Interval is the user-configured rotation period.
	Interval time.Duration

	// ReliableFloor is the minimum period for the reliable ticker.
	// Zero means 10s.
	ReliableFloor time.Duration

	// BestEffort enables the second, configured-rate ticker.
	BestEffort bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(trigger *Trigger, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.ReliableFloor <= 0 {
		cfg.ReliableFloor = widget.ReliableFloorSeconds * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = widget.DefaultIntervalSeconds * time.Second
	}
	return &Scheduler{
		trigger:       trigger,
		reliableFloor: cfg.ReliableFloor,
		bestEffort:    cfg.BestEffort,
		interval:      cfg.Interval,
		logger:        logutil.NoopIfNil(logger),
	}
}

// Start begins ticking. Calling Start on a running scheduler restarts
// it, which is how interval changes take effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done

	reliable := s.interval
	if reliable < s.reliableFloor {
		reliable = s.reliableFloor
	}

	go s.loop(runCtx, done, reliable, s.interval)
	s.logger.Info("rotation scheduler started",
		"reliable_interval", reliable, "best_effort", s.bestEffort, "interval", s.interval)
}

// Stop halts ticking. Safe to call when already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Info("rotation scheduler stopped")
}

// SetInterval updates the rotation period and restarts the tickers when
// the scheduler is running.
func (s *Scheduler) SetInterval(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	s.interval = interval
	running := s.cancel != nil
	s.mu.Unlock()
	if running {
		s.Start(ctx)
	}
}

// Running reports whether the tickers are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}, reliable, best time.Duration) {
	defer close(done)

	reliableTicker := time.NewTicker(reliable)
	defer reliableTicker.Stop()

	// The best-effort ticker fires at the raw configured rate. When it
	// is disabled (or identical to the reliable rate) only the reliable
	// ticker drives rotation.
	var bestC <-chan time.Time
	if s.bestEffort && best != reliable {
		bestTicker := time.NewTicker(best)
		defer bestTicker.Stop()
		bestC = bestTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-reliableTicker.C:
			_ = s.trigger.Fire(ctx)
		case <-bestC:
			_ = s.trigger.Fire(ctx)
		}
	}
}

// EventType is a host widget lifecycle or interaction event.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventResized EventType = "resized"
	EventClicked EventType = "clicked"
	EventRemoved EventType = "removed"
)

// Event is one host notification about a widget instance.
type Event struct {
	Type     EventType `json:"type"`
	WidgetID string    `json:"widgetId,omitempty"`

	// LastInstance marks a removed event for the final widget
	// instance, which tears the scheduler down.
	LastInstance bool `json:"lastInstance,omitempty"`
}

// Dispatcher routes host events to the trigger, renderer, and
// scheduler. It holds no state of its own.
type Dispatcher struct {
	trigger   *Trigger
	renderer  Renderer
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(trigger *Trigger, renderer Renderer, scheduler *Scheduler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{trigger: trigger, renderer: renderer, scheduler: scheduler, logger: logutil.NoopIfNil(logger)}
}

// Dispatch handles one host event. Unknown event types are rejected so
// host integration bugs surface early.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.logger.Debug("widget event", "type", ev.Type, "widget_id", ev.WidgetID)
	switch ev.Type {
	case EventClicked:
		return d.trigger.Fire(ctx)
	case EventAdded, EventUpdated, EventResized:
		return d.renderer.RequestRender(ctx)
	case EventRemoved:
		if ev.LastInstance {
			d.scheduler.Stop()
		}
		return nil
	default:
		return faults.Newf(faults.KindValidation, "unknown widget event %q", ev.Type)
	}
}
