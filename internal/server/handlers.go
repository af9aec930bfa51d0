package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/athanasso/photos-widget/internal/acquire"
	"github.com/athanasso/photos-widget/internal/api"
	"github.com/athanasso/photos-widget/internal/faults"
	"github.com/athanasso/photos-widget/internal/rotate"
	"github.com/athanasso/photos-widget/internal/widget"
)

// widgetSnapshot is the GET /api/widget response.
type widgetSnapshot struct {
	Initialized             bool               `json:"initialized"`
	Photos                  []widget.Photo     `json:"photos"`
	CurrentIndex            int                `json:"currentIndex"`
	Current                 *widget.Photo      `json:"current,omitempty"`
	DisplayMode             widget.DisplayMode `json:"displayMode"`
	EffectiveMode           widget.DisplayMode `json:"effectiveMode"`
	RotationIntervalSeconds int                `json:"rotationIntervalSeconds"`
	LastUpdatedAt           time.Time          `json:"lastUpdatedAt,omitzero"`
}

func snapshotOf(state *widget.State) widgetSnapshot {
	if state == nil {
		return widgetSnapshot{
			Photos:                  []widget.Photo{},
			DisplayMode:             widget.ModeSingle,
			EffectiveMode:           widget.ModeSingle,
			RotationIntervalSeconds: widget.DefaultIntervalSeconds,
		}
	}
	snap := widgetSnapshot{
		Initialized:             true,
		Photos:                  state.Photos,
		CurrentIndex:            state.CurrentIndex,
		DisplayMode:             state.DisplayMode,
		EffectiveMode:           state.EffectiveMode(),
		RotationIntervalSeconds: state.RotationIntervalSeconds,
		LastUpdatedAt:           state.LastUpdatedAt,
	}
	if current, ok := state.Current(); ok {
		snap.Current = &current
	}
	return snap
}

func (s *Server) handleWidgetRead(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Manager.Read(r.Context())
	if err != nil {
		api.WriteFault(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, snapshotOf(state))
}

func (s *Server) handleWidgetAdvance(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Trigger.Fire(r.Context()); err != nil {
		api.WriteFault(w, err)
		return
	}
	state, err := s.deps.Manager.Read(r.Context())
	if err != nil {
		api.WriteFault(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, snapshotOf(state))
}

type intervalRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleWidgetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, "invalid JSON body")
		return
	}
	if err := s.deps.Manager.SetInterval(r.Context(), req.Seconds); err != nil {
		api.WriteFault(w, err)
		return
	}
	s.deps.Scheduler.SetInterval(context.WithoutCancel(r.Context()), time.Duration(req.Seconds)*time.Second)
	w.WriteHeader(http.StatusNoContent)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleWidgetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, "invalid JSON body")
		return
	}
	mode, err := widget.ParseDisplayMode(req.Mode)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, err.Error())
		return
	}
	if err := s.deps.Manager.SetMode(r.Context(), mode); err != nil {
		api.WriteFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWidgetClear(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Manager.Clear(r.Context()); err != nil {
		api.WriteFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importRequest struct {
	Paths []string `json:"paths"`
	Mode  string   `json:"mode"`
}

func (s *Server) handlePhotosImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, "invalid JSON body")
		return
	}
	mode, err := widget.ParseDisplayMode(req.Mode)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, err.Error())
		return
	}
	photos, err := s.deps.Importer.Import(r.Context(), req.Paths, mode)
	if err != nil {
		api.WriteFault(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"photos": photos})
}

type acquireRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleAcquireStart(w http.ResponseWriter, r *http.Request) {
	// An empty body means "defaults": single mode.
	var req acquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, "invalid JSON body")
		return
	}
	mode, err := widget.ParseDisplayMode(req.Mode)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, err.Error())
		return
	}

	// The run outlives this request; only an explicit cancel or a
	// terminal state ends it.
	run, err := s.deps.Workflow.Start(context.WithoutCancel(r.Context()), mode)
	if err != nil {
		if errors.Is(err, acquire.ErrBusy) {
			api.WriteError(w, http.StatusConflict, api.ReasonBusy, err.Error())
			return
		}
		api.WriteFault(w, err)
		return
	}

	// Respond once the picker URI is known (or the run failed early).
	select {
	case <-run.PickerOpened():
	case <-r.Context().Done():
	case <-time.After(pickerOpenTimeout):
	}

	st := run.Status()
	if st.State == acquire.StateError {
		kind := st.ErrorKind
		if kind == "" {
			kind = faults.KindUnknown
		}
		api.WriteFault(w, faults.New(kind, st.Error))
		return
	}
	api.WriteJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleAcquireStatus(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.deps.Workflow.Status())
}

func (s *Server) handlePickerDismissed(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Workflow.ConfirmPickerDismissed(); err != nil {
		api.WriteError(w, http.StatusNotFound, api.ReasonNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAcquireCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Workflow.Cancel(); err != nil {
		api.WriteError(w, http.StatusNotFound, api.ReasonNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev rotate.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidRequest, "invalid JSON body")
		return
	}
	if err := s.deps.Dispatcher.Dispatch(r.Context(), ev); err != nil {
		api.WriteFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
