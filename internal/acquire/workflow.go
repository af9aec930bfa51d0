package acquire

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/logutil"
	"github.com/athanasso/photos-widget/internal/picker"
	"github.com/athanasso/photos-widget/internal/retry"
	"github.com/athanasso/photos-widget/internal/widget"
)

// State identifies a stage of an acquisition run.
type State string

const (
	StateIdle              State = "idle"
	StateCreatingSession   State = "creating_session"
	StatePickerOpen        State = "picker_open"
	StatePolling           State = "polling"
	StateFetchingSelection State = "fetching_selection"
	StateDownloading       State = "downloading"
	StateCommitting        State = "committing"
	StateDone              State = "done"
	StateError             State = "error"
)

const cleanupTimeout = 10 * time.Second

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = errors.New("acquire: acquisition already in progress")

// ErrNoRun is returned when an operation targets the current run but
// none exists.
var ErrNoRun = errors.New("acquire: no acquisition run")

// Committer replaces the committed photo set. *widget.Manager satisfies it.
type Committer interface {
	Replace(ctx context.Context, photos []widget.Photo, mode widget.DisplayMode) error
}

// Status is a point-in-time snapshot of a run.
type Status struct {
	RunID      string             `json:"runId"`
	State      State              `json:"state"`
	PickerURI  string             `json:"pickerUri,omitempty"`
	Committed  int                `json:"committed,omitempty"`
	ErrorKind  faults.Kind        `json:"errorKind,omitempty"`
	Error      string             `json:"error,omitempty"`
	Mode       widget.DisplayMode `json:"mode"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt,omitzero"`
}

// Run is a single acquisition attempt. It is created by Workflow.Start
// and advances through its states on a background goroutine.
type Run struct {
	id        string
	mode      widget.DisplayMode
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	dismissOnce sync.Once
	dismissed   chan struct{}

	openedOnce sync.Once
	opened     chan struct{}

	mu         sync.Mutex
	state      State
	pickerURI  string
	committed  int
	errKind    faults.Kind
	errMessage string
	finishedAt time.Time
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) setPickerURI(uri string) {
	r.mu.Lock()
	r.pickerURI = uri
	r.mu.Unlock()
	r.openedOnce.Do(func() { close(r.opened) })
}

func (r *Run) finish(committed int) {
	r.mu.Lock()
	r.state = StateDone
	r.committed = committed
	r.finishedAt = time.Now().UTC()
	r.mu.Unlock()
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	r.state = StateError
	r.errKind = faults.KindOf(err)
	r.errMessage = err.Error()
	r.finishedAt = time.Now().UTC()
	r.mu.Unlock()
	r.openedOnce.Do(func() { close(r.opened) })
}

// ConfirmPickerDismissed signals that the user closed the external
// picker. Safe to call more than once.
func (r *Run) ConfirmPickerDismissed() {
	r.dismissOnce.Do(func() { close(r.dismissed) })
}

// Cancel aborts the run. The background goroutine still performs
// session cleanup before finishing.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the run reaches a terminal state and cleanup
// has completed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// PickerOpened is closed once the picker URI is known, or earlier when
// the run fails before a session exists.
func (r *Run) PickerOpened() <-chan struct{} {
	return r.opened
}

// Status returns a snapshot of the run.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		RunID:      r.id,
		State:      r.state,
		PickerURI:  r.pickerURI,
		Committed:  r.committed,
		ErrorKind:  r.errKind,
		Error:      r.errMessage,
		Mode:       r.mode,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
}

// Workflow drives photo acquisition end to end: session creation,
// picker handoff, readiness polling, selection download, and the final
// commit to the widget state. At most one run is in flight at a time.
type Workflow struct {
	sessions   picker.Sessions
	downloader Downloader
	committer  Committer
	pollPolicy retry.Policy
	logger     *slog.Logger

	mu      sync.Mutex
	current *Run
}

// NewWorkflow creates a workflow. pollPolicy bounds how long a run
// waits for the user to finish selecting.
func NewWorkflow(sessions picker.Sessions, downloader Downloader, committer Committer, pollPolicy retry.Policy, logger *slog.Logger) *Workflow {
	return &Workflow{
		sessions:   sessions,
		downloader: downloader,
		committer:  committer,
		pollPolicy: pollPolicy,
		logger:     logutil.NoopIfNil(logger),
	}
}

// Start begins a new acquisition run, or returns ErrBusy when one is
// already in flight. The run proceeds on its own goroutine; callers
// observe it through Status and the picker-dismissed signal.
func (w *Workflow) Start(ctx context.Context, mode widget.DisplayMode) (*Run, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil {
		select {
		case <-w.current.done:
		default:
			return nil, ErrBusy
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		id:        uuid.NewString(),
		mode:      mode,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
		dismissed: make(chan struct{}),
		opened:    make(chan struct{}),
		state:     StateIdle,
	}
	w.current = run

	go func() {
		defer cancel()
		defer close(run.done)
		w.execute(runCtx, run)
	}()

	return run, nil
}

// Current returns the most recent run, or nil when none was started.
func (w *Workflow) Current() *Run {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Status reports the most recent run, or an idle snapshot when none
// was ever started.
func (w *Workflow) Status() Status {
	if run := w.Current(); run != nil {
		return run.Status()
	}
	return Status{State: StateIdle}
}

// ConfirmPickerDismissed forwards the dismissal signal to the current run.
func (w *Workflow) ConfirmPickerDismissed() error {
	run := w.Current()
	if run == nil {
		return ErrNoRun
	}
	run.ConfirmPickerDismissed()
	return nil
}

// Cancel aborts the current run.
func (w *Workflow) Cancel() error {
	run := w.Current()
	if run == nil {
		return ErrNoRun
	}
	run.Cancel()
	return nil
}

func (w *Workflow) execute(ctx context.Context, run *Run) {
	run.setState(StateCreatingSession)
	sess, err := w.sessions.CreateSession(ctx)
	if err != nil {
		w.logger.Error("session creation failed", "run_id", run.id, "error", err)
		run.fail(err)
		return
	}

	// The session must be deleted on every outcome, including
	// cancellation, so cleanup runs on a context detached from the
	// run's own.
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := w.sessions.DeleteSession(cctx, sess.ID); err != nil {
			w.logger.Warn("session cleanup failed", "run_id", run.id, "session_id", sess.ID, "error", err)
		}
	}()

	run.setPickerURI(sess.PickerURI)
	run.setState(StatePickerOpen)
	w.logger.Info("picker session opened", "run_id", run.id, "session_id", sess.ID)

	select {
	case <-ctx.Done():
		run.fail(ctx.Err())
		return
	case <-run.dismissed:
	}

	run.setState(StatePolling)
	if err := w.pollUntilReady(ctx, sess.ID); err != nil {
		run.fail(err)
		return
	}

	run.setState(StateFetchingSelection)
	items, err := w.sessions.ListMediaItems(ctx, sess.ID)
	if err != nil {
		run.fail(err)
		return
	}
	if len(items) == 0 {
		run.fail(faults.New(faults.KindEmptySelection, "no items selected"))
		return
	}

	run.setState(StateDownloading)
	photos := make([]widget.Photo, 0, len(items))
	for _, item := range items {
		photo, err := w.downloader.Download(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				run.fail(ctx.Err())
				return
			}
			// Per-item failures are non-fatal: the remaining
			// items still get committed.
			w.logger.Warn("media item skipped", "run_id", run.id, "item_id", item.ID, "error", err)
			continue
		}
		photos = append(photos, photo)
	}
	if len(photos) == 0 {
		run.fail(faults.New(faults.KindEmptySelection, "all selected items failed to download"))
		return
	}

	run.setState(StateCommitting)
	if err := w.committer.Replace(ctx, photos, run.mode); err != nil {
		run.fail(err)
		return
	}

	w.logger.Info("acquisition committed", "run_id", run.id, "photos", len(photos), "skipped", len(items)-len(photos))
	run.finish(len(photos))
}

// pollUntilReady asks the picker backend for the session until the
// user's selection is final. Exhausting the poll budget means the user
// abandoned the picker, which surfaces as a timeout fault.
func (w *Workflow) pollUntilReady(ctx context.Context, sessionID string) error {
	err := w.pollPolicy.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		sess, err := w.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return sess.MediaItemsSet, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return faults.Wrap(faults.KindTimeout, "selection never completed", err)
	}
	return err
}
