package handler

import (
	"time"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339),
	}
}

// SessionDTO is the JSON representation of a session snapshot.
type SessionDTO struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Status             string   `json:"status"`
	PausedPhase        string   `json:"pausedPhase,omitempty"`
	CurrentCycle       int      `json:"currentCycle"`
	TimeRemaining      int      `json:"timeRemaining"`
	Clock              string   `json:"clock"`
	Progress           float64  `json:"progress"`
	WorkDuration       int      `json:"workDuration"`
	ShortBreakDuration int      `json:"shortBreakDuration"`
	LongBreakDuration  int      `json:"longBreakDuration"`
	ActiveParticipants []string `json:"activeParticipants"`
	CreatedBy          string   `json:"createdBy"`
	Version            int64    `json:"version"`
	CreatedAt          string   `json:"createdAt"`
	LastUpdated        string   `json:"lastUpdated"`
}

func toSessionDTO(s *domain.Session) SessionDTO {
	participants := []string(s.ActiveParticipants)
	if participants == nil {
		participants = []string{}
	}
	return SessionDTO{
		ID:                 s.ID,
		Name:               s.Name,
		Status:             string(s.Status),
		PausedPhase:        string(s.PausedPhase),
		CurrentCycle:       s.CurrentCycle,
		TimeRemaining:      s.TimeRemaining,
		Clock:              service.FormatClock(s.TimeRemaining),
		Progress:           service.PhaseProgress(s),
		WorkDuration:       s.WorkDuration,
		ShortBreakDuration: s.ShortBreakDuration,
		LongBreakDuration:  s.LongBreakDuration,
		ActiveParticipants: participants,
		CreatedBy:          s.CreatedBy,
		Version:            s.Version,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
		LastUpdated:        s.LastUpdated.Format(time.RFC3339),
	}
}

func toSessionDTOs(sessions []domain.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i := range sessions {
		dtos[i] = toSessionDTO(&sessions[i])
	}
	return dtos
}

// TaskDTO is the JSON representation of a task.
type TaskDTO struct {
	ID                 string `json:"id"`
	SessionID          string `json:"sessionId"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	Priority           string `json:"priority"`
	EstimatedPomodoros int    `json:"estimatedPomodoros"`
	Completed          bool   `json:"completed"`
	CompletedBy        string `json:"completedBy,omitempty"`
	CompletedAt        string `json:"completedAt,omitempty"`
	CreatedBy          string `json:"createdBy"`
	CreatedAt          string `json:"createdAt"`
}

func toTaskDTO(t *domain.Task) TaskDTO {
	dto := TaskDTO{
		ID:                 t.ID,
		SessionID:          t.SessionID,
		Title:              t.Title,
		Description:        t.Description,
		Priority:           string(t.Priority),
		EstimatedPomodoros: t.EstimatedPomodoros,
		CreatedBy:          t.CreatedBy,
		CreatedAt:          t.CreatedAt.Format(time.RFC3339),
	}
	if t.Completion != nil {
		dto.Completed = true
		dto.CompletedBy = t.Completion.By
		dto.CompletedAt = t.Completion.At.Format(time.RFC3339)
	}
	return dto
}

func toTaskDTOs(tasks []domain.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i := range tasks {
		dtos[i] = toTaskDTO(&tasks[i])
	}
	return dtos
}
