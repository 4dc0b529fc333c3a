package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
	"github.com/msomdec/focusvault/internal/view"
)

// SettingsHandler serves the current user's Pomodoro preferences.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// HandleGet returns the user's settings.
// GET /api/settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": user.Settings})
}

// HandleUpdate replaces the user's settings.
// PUT /api/settings
// Request: {"work_minutes":25,"short_break_minutes":5,"long_break_minutes":15,...}
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req domain.Settings
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	saved, err := h.settings.Update(r.Context(), user.ID, req)
	if err != nil {
		writeServiceError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": saved})
}

// HandlePage renders the settings form.
func (h *SettingsHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	view.SettingsPage(user, user.Settings, "").Render(r.Context(), w)
}

// HandleForm processes the settings form.
func (h *SettingsHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	form := domain.Settings{
		WorkMinutes:       atoiOrZero(r.FormValue("work_minutes")),
		ShortBreakMinutes: atoiOrZero(r.FormValue("short_break_minutes")),
		LongBreakMinutes:  atoiOrZero(r.FormValue("long_break_minutes")),
		NotificationSound: r.FormValue("notification_sound") != "",
		AutoStartBreaks:   r.FormValue("auto_start_breaks") != "",
		Theme:             r.FormValue("theme"),
	}

	if _, err := h.settings.Update(r.Context(), user.ID, form); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			view.SettingsPage(user, form, err.Error()).Render(r.Context(), w)
			return
		}
		pageError(w, "update settings", err)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
