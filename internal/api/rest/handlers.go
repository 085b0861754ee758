package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	app "ar-overlay/internal/application"
	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

type handlers struct {
	sessions Sessions
	logger   *slog.Logger
}

type statsResponse struct {
	Ticks   uint64 `json:"ticks"`
	Samples uint64 `json:"samples"`
	Skipped uint64 `json:"skipped"`
}

// StateResponse состояние контроллера для UI
type StateResponse struct {
	SessionID      string            `json:"session_id"`
	Phase          entity.Phase      `json:"phase"`
	OverlayVisible bool              `json:"overlay_visible"`
	OverlayRef     string            `json:"overlay_ref,omitempty"`
	FacingMode     entity.FacingMode `json:"facing_mode"`
	PendingSince   *time.Time        `json:"pending_since,omitempty"`
	HasDiagnostic  bool              `json:"has_diagnostic"`
	InFlight       bool              `json:"in_flight"`
	Stats          statsResponse     `json:"stats"`
}

type flipResponse struct {
	FacingMode entity.FacingMode `json:"facing_mode"`
	Error      string            `json:"error,omitempty"`
}

func newStateResponse(snap app.SessionSnapshot) StateResponse {
	st := snap.State
	resp := StateResponse{
		SessionID:      snap.ID,
		Phase:          st.Phase,
		OverlayVisible: st.Phase.OverlayVisible(),
		OverlayRef:     st.ActiveOverlayRef,
		FacingMode:     st.FacingMode,
		HasDiagnostic:  snap.DiagnosticImage != "",
		InFlight:       snap.InFlight,
		Stats: statsResponse{
			Ticks:   snap.Stats.Ticks,
			Samples: snap.Stats.Samples,
			Skipped: snap.Stats.Skipped,
		},
	}
	if !st.PendingSince.IsZero() {
		ps := st.PendingSince.UTC()
		resp.PendingSince = &ps
	}
	return resp
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK\n"))
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(snap))
}

func (h *handlers) diagnostic(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot()
	if err != nil {
		h.fail(w, err)
		return
	}
	if snap.DiagnosticImage == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	mime, data, err := entity.DecodeDiagnostic(snap.DiagnosticImage)
	if errors.Is(err, entity.ErrRemoteImage) {
		http.Redirect(w, r, snap.DiagnosticImage, http.StatusFound)
		return
	}
	if err != nil {
		h.logger.Warn("undecodable diagnostic image", "error", err)
		http.Error(w, "diagnostic image is not decodable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (h *handlers) flip(w http.ResponseWriter, r *http.Request) {
	mode, err := h.sessions.Flip(r.Context())
	switch {
	case errors.Is(err, app.ErrNoSession), errors.Is(err, app.ErrSessionClosed):
		h.fail(w, err)
	case err != nil:
		// камера осталась в прежнем режиме, фаза не тронута
		writeJSON(w, http.StatusConflict, flipResponse{FacingMode: mode, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, flipResponse{FacingMode: mode})
	}
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reset(); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) mount(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Mount()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newStateResponse(sess.Snapshot()))
}

func (h *handlers) unmount(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Unmount(); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNoSession), errors.Is(err, app.ErrSessionClosed):
		http.Error(w, "no active session", http.StatusNotFound)
	case errors.Is(err, port.ErrCameraUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
