package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
	"github.com/msomdec/focusvault/internal/view"
)

// PageHandler serves the HTML pages and the Datastar actions and stream
// behind them.
type PageHandler struct {
	sessions *service.SessionService
	tasks    *service.TaskService
	settings *service.SettingsService
	hub      *service.Hub
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(sessions *service.SessionService, tasks *service.TaskService, settings *service.SettingsService, hub *service.Hub) *PageHandler {
	return &PageHandler{sessions: sessions, tasks: tasks, settings: settings, hub: hub}
}

// HandleHome renders the session list.
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		pageError(w, "list sessions", err)
		return
	}
	view.HomePage(UserFromContext(r.Context()), sessions, "").Render(r.Context(), w)
}

// HandleCreate creates a session from the home page form, using the
// creator's duration settings.
func (h *PageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	d, err := h.settings.SessionDurations(r.Context(), user.ID)
	if err != nil {
		pageError(w, "load session durations", err)
		return
	}

	session, err := h.sessions.Create(r.Context(), r.FormValue("name"), user.Email, d)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			sessions, listErr := h.sessions.List(r.Context())
			if listErr != nil {
				pageError(w, "list sessions", listErr)
				return
			}
			w.WriteHeader(http.StatusUnprocessableEntity)
			view.HomePage(user, sessions, err.Error()).Render(r.Context(), w)
			return
		}
		pageError(w, "create session", err)
		return
	}

	http.Redirect(w, r, "/sessions/"+session.ID, http.StatusSeeOther)
}

// HandleSession renders the timer and task board page of a session.
// Unknown sessions redirect to the session list.
func (h *PageHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	session, err := h.sessions.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		pageError(w, "get session", err)
		return
	}

	tasks, err := h.tasks.ListBySession(r.Context(), session.ID)
	if err != nil {
		pageError(w, "list tasks", err)
		return
	}

	view.SessionPage(user, session, tasks).Render(r.Context(), w)
}

// HandleStream keeps an SSE connection open and patches the timer on every
// session snapshot and the task board whenever tasks change.
func (h *PageHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	events, cancel := h.hub.Subscribe(id)
	defer cancel()

	session, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		pageError(w, "get session", err)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(view.TimerFragment(session, user.Email)); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Session != nil {
				if err := sse.PatchElementTempl(view.TimerFragment(ev.Session, user.Email)); err != nil {
					return
				}
			}
			if ev.TasksChanged {
				tasks, err := h.tasks.ListBySession(r.Context(), id)
				if err != nil {
					slog.Error("list tasks for stream", "session_id", id, "error", err)
					continue
				}
				if err := sse.PatchElementTempl(view.TaskBoardFragment(id, tasks)); err != nil {
					return
				}
			}
		}
	}
}

// HandleAction returns the Datastar handler for one session command. It
// answers with the updated timer, or with a flash message when the command
// was rejected.
func (h *PageHandler) HandleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		session, err := runCommand(r.Context(), h.sessions, action, r.PathValue("id"), 0, user.Email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				datastar.NewSSE(w, r).Redirect("/")
				return
			}
			h.flash(w, r, action+" session", err)
			return
		}

		sse := datastar.NewSSE(w, r)
		sse.PatchElementTempl(view.TimerFragment(session, user.Email))
		sse.PatchElementTempl(view.Flash(""))
	}
}

type taskSignals struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Estimate    any    `json:"estimate"`
}

// HandleAddTask adds a task from the task board form signals.
func (h *PageHandler) HandleAddTask(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var signals taskSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sessionID := r.PathValue("id")
	_, err := h.tasks.Add(r.Context(), sessionID, service.TaskInput{
		Title:              signals.Title,
		Description:        signals.Description,
		Priority:           domain.Priority(signals.Priority),
		EstimatedPomodoros: signalInt(signals.Estimate),
	}, user.Email)
	if err != nil {
		h.flash(w, r, "add task", err)
		return
	}

	h.patchTaskBoard(w, r, sessionID)
}

// HandleCompleteTask marks a task done by the current user.
func (h *PageHandler) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	task, err := h.tasks.Complete(r.Context(), r.PathValue("id"), user.Email)
	if err != nil {
		h.flash(w, r, "complete task", err)
		return
	}

	h.patchTaskBoard(w, r, task.SessionID)
}

func (h *PageHandler) patchTaskBoard(w http.ResponseWriter, r *http.Request, sessionID string) {
	tasks, err := h.tasks.ListBySession(r.Context(), sessionID)
	if err != nil {
		h.flash(w, r, "list tasks", err)
		return
	}

	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(view.TaskBoardFragment(sessionID, tasks))
	sse.PatchElementTempl(view.Flash(""))
}

// flash reports a rejected action in the page's flash banner.
func (h *PageHandler) flash(w http.ResponseWriter, r *http.Request, op string, err error) {
	var message string
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		message = "That item no longer exists."
	case errors.Is(err, domain.ErrConflict):
		message = "Someone else changed this session. Try again."
	case errors.Is(err, domain.ErrPersistence):
		slog.Error(op, "error", err)
		message = "The change could not be saved. Please try again."
	default:
		slog.Error(op, "error", err)
		message = "An unexpected error occurred."
	}
	datastar.NewSSE(w, r).PatchElementTempl(view.Flash(message))
}

// signalInt reads a numeric signal that may arrive as a JSON number or string.
func signalInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return -1
		}
		return i
	}
	return 0
}
