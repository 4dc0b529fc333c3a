package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/focusvault/internal/domain"
)

// writeServiceError maps a service error onto a JSON error response.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "The session changed since you last loaded it. Reload and try again.")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "An account with that email already exists.")
	case errors.Is(err, domain.ErrPersistence):
		slog.Error(op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "The record store is unavailable. Please try again.")
	default:
		slog.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
	}
}

// pageError is writeServiceError for HTML and SSE endpoints.
func pageError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrPersistence):
		slog.Error(op, "error", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	default:
		slog.Error(op, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
