package handler

import (
	"context"
	"net/http"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

// SessionHandler serves the JSON session API.
type SessionHandler struct {
	sessions *service.SessionService
	settings *service.SettingsService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, settings *service.SettingsService) *SessionHandler {
	return &SessionHandler{sessions: sessions, settings: settings}
}

// HandleList returns every session, most recently updated first.
// GET /api/sessions
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		writeServiceError(w, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": toSessionDTOs(sessions)})
}

// HandleCreate creates a session owned by the current user. Phase lengths
// not given in the request come from the user's settings.
// POST /api/sessions
// Request: {"name":"...","workMinutes":25,"shortBreakMinutes":5,"longBreakMinutes":15}
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		Name              string `json:"name"`
		WorkMinutes       int    `json:"workMinutes"`
		ShortBreakMinutes int    `json:"shortBreakMinutes"`
		LongBreakMinutes  int    `json:"longBreakMinutes"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	var given []int
	for _, m := range []int{req.WorkMinutes, req.ShortBreakMinutes, req.LongBreakMinutes} {
		if m != 0 {
			given = append(given, m)
		}
	}
	if err := domain.ValidatePhaseMinutes(given...); err != nil {
		writeServiceError(w, "create session", err)
		return
	}

	d, err := h.settings.SessionDurations(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "load session durations", err)
		return
	}
	if req.WorkMinutes != 0 {
		d.Work = req.WorkMinutes * 60
	}
	if req.ShortBreakMinutes != 0 {
		d.ShortBreak = req.ShortBreakMinutes * 60
	}
	if req.LongBreakMinutes != 0 {
		d.LongBreak = req.LongBreakMinutes * 60
	}

	session, err := h.sessions.Create(r.Context(), req.Name, user.Email, d)
	if err != nil {
		writeServiceError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": toSessionDTO(session)})
}

// HandleGet returns one session with its live remaining time.
// GET /api/sessions/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": toSessionDTO(session)})
}

// HandleCommand returns the handler for one session command. The optional
// request body {"version": n} makes the command conditional on the session
// still being at version n.
// POST /api/sessions/{id}/{start|pause|reset|complete|join|leave}
func (h *SessionHandler) HandleCommand(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}

		var req struct {
			Version int64 `json:"version"`
		}
		if err := readOptionalJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}

		session, err := runCommand(r.Context(), h.sessions, action, r.PathValue("id"), req.Version, user.Email)
		if err != nil {
			writeServiceError(w, action+" session", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": toSessionDTO(session)})
	}
}

// sessionActions lists the commands accepted by runCommand.
var sessionActions = []string{"start", "pause", "reset", "complete", "join", "leave"}

func runCommand(ctx context.Context, sessions *service.SessionService, action, id string, version int64, participant string) (*domain.Session, error) {
	switch action {
	case "start":
		return sessions.Start(ctx, id, version)
	case "pause":
		return sessions.Pause(ctx, id, version)
	case "reset":
		return sessions.Reset(ctx, id, version)
	case "complete":
		return sessions.CompleteCycle(ctx, id, version)
	case "join":
		return sessions.Join(ctx, id, participant)
	case "leave":
		return sessions.Leave(ctx, id, participant)
	}
	return nil, domain.ErrNotFound
}
