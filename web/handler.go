package web

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"scribe/app"
	"scribe/settings"
)

// Handler exposes the dashboard and the JSON action API. Every action
// returns the refreshed session state; failures are already folded into
// the status string by the app layer, so handlers stay thin.
type Handler struct {
	app    *app.App
	logger *log.Logger
}

func NewHandler(a *app.App, logger *log.Logger) *Handler {
	return &Handler{app: a, logger: logger}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", h.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/state", h.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/recording/start", h.action(h.startRecording)).Methods(http.MethodPost)
	r.HandleFunc("/api/recording/stop", h.action(h.stopRecording)).Methods(http.MethodPost)
	r.HandleFunc("/api/notes/generate", h.action(h.generateNotes)).Methods(http.MethodPost)
	r.HandleFunc("/api/notes/save", h.action(h.saveToPatient)).Methods(http.MethodPost)
	r.HandleFunc("/api/session/clear", h.action(h.clearSession)).Methods(http.MethodPost)
	r.HandleFunc("/api/patients", h.handleCreatePatient).Methods(http.MethodPost)
	r.HandleFunc("/api/patients/select", h.handleSelectPatient).Methods(http.MethodPost)
	r.HandleFunc("/api/preferences", h.handlePreferences).Methods(http.MethodPost)
	r.HandleFunc("/api/settings", h.handleSettings).Methods(http.MethodPost)

	return r
}

// action wraps a state-mutating call: run it, then answer with the new
// snapshot. Errors are intentionally not turned into HTTP errors; the
// snapshot's status field carries the user-facing outcome.
func (h *Handler) action(fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r); err != nil {
			h.logger.Debug("action failed", "path", r.URL.Path, "error", err)
		}
		h.writeState(w)
	}
}

func (h *Handler) startRecording(r *http.Request) error {
	return h.app.StartRecording(r.Context())
}

func (h *Handler) stopRecording(r *http.Request) error {
	return h.app.StopRecording(r.Context())
}

func (h *Handler) generateNotes(r *http.Request) error {
	// The generation call must outlive this request's context: once
	// started it runs to completion or failure, never cancelled by the
	// surface.
	return h.app.GenerateNotes(r.Context())
}

func (h *Handler) saveToPatient(*http.Request) error {
	return h.app.SaveToPatient()
}

func (h *Handler) clearSession(*http.Request) error {
	h.app.ClearSession()
	return nil
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w)
}

func (h *Handler) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string `json:"name"`
		DOB        string `json:"dob"`
		MRN        string `json:"mrn"`
		Conditions string `json:"conditions"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if p, err := h.app.CreatePatient(body.Name, body.DOB, body.MRN, body.Conditions); err == nil {
		// Creating from the dashboard selects the new patient.
		_ = h.app.SelectPatient(p.ID)
	}
	h.writeState(w)
}

func (h *Handler) handleSelectPatient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	_ = h.app.SelectPatient(body.ID)
	h.writeState(w)
}

func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs settings.Preferences
	if !h.decode(w, r, &prefs) {
		return
	}

	_ = h.app.UpdatePreferences(prefs)
	h.writeState(w)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	var api settings.API
	if !h.decode(w, r, &api) {
		return
	}

	_ = h.app.UpdateSettings(api)
	h.writeState(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeState(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.app.Snapshot()); err != nil {
		h.logger.Error("failed to encode state", "error", err)
	}
}
