package handler

import (
	"net/http"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

// TaskHandler serves the JSON task board API.
type TaskHandler struct {
	tasks    *service.TaskService
	sessions *service.SessionService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks *service.TaskService, sessions *service.SessionService) *TaskHandler {
	return &TaskHandler{tasks: tasks, sessions: sessions}
}

// HandleList returns a session's tasks, most recently created first.
// GET /api/sessions/{id}/tasks
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := h.sessions.GetByID(r.Context(), sessionID); err != nil {
		writeServiceError(w, "get session", err)
		return
	}

	tasks, err := h.tasks.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": toTaskDTOs(tasks)})
}

// HandleGet returns one task.
// GET /api/tasks/{id}
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": toTaskDTO(task)})
}

// HandleAdd adds a task to a session's board.
// POST /api/sessions/{id}/tasks
// Request: {"title":"...","description":"...","priority":"high","estimatedPomodoros":2}
func (h *TaskHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		Title              string `json:"title"`
		Description        string `json:"description"`
		Priority           string `json:"priority"`
		EstimatedPomodoros int    `json:"estimatedPomodoros"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	task, err := h.tasks.Add(r.Context(), r.PathValue("id"), service.TaskInput{
		Title:              req.Title,
		Description:        req.Description,
		Priority:           domain.Priority(req.Priority),
		EstimatedPomodoros: req.EstimatedPomodoros,
	}, user.Email)
	if err != nil {
		writeServiceError(w, "add task", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": toTaskDTO(task)})
}

// HandleComplete marks a task done by the current user.
// POST /api/tasks/{id}/complete
func (h *TaskHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	task, err := h.tasks.Complete(r.Context(), r.PathValue("id"), user.Email)
	if err != nil {
		writeServiceError(w, "complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": toTaskDTO(task)})
}
