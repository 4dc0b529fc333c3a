package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

const MaxTaskTitleLength = 200

// Completion records who finished a task and when. A task with a nil
// Completion is pending.
type Completion struct {
	By string
	At time.Time
}

// Task is an item on a session's shared task board.
type Task struct {
	ID                 string
	SessionID          string
	Title              string
	Description        string
	Priority           Priority
	EstimatedPomodoros int
	CreatedBy          string
	CreatedAt          time.Time
	Completion         *Completion
}

// NewTask validates the inputs and applies the defaults for priority
// (medium) and estimated pomodoros (1).
func NewTask(sessionID, title, description string, priority Priority, estimatedPomodoros int, createdBy string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	if len([]rune(title)) > MaxTaskTitleLength {
		return nil, fmt.Errorf("%w: task title must be at most %d characters", ErrInvalidInput, MaxTaskTitleLength)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority must be low, medium, or high", ErrInvalidInput)
	}
	if estimatedPomodoros == 0 {
		estimatedPomodoros = 1
	}
	if estimatedPomodoros < 1 {
		return nil, fmt.Errorf("%w: estimated pomodoros must be at least 1", ErrInvalidInput)
	}

	return &Task{
		SessionID:          sessionID,
		Title:              title,
		Description:        strings.TrimSpace(description),
		Priority:           priority,
		EstimatedPomodoros: estimatedPomodoros,
		CreatedBy:          createdBy,
	}, nil
}

func (t *Task) Completed() bool {
	return t.Completion != nil
}

// Complete marks the task done. Completion is one-way: an already completed
// task keeps its original Completion and Complete returns false.
func (t *Task) Complete(by string, at time.Time) bool {
	if t.Completed() {
		return false
	}
	t.Completion = &Completion{By: by, At: at}
	return true
}

// TaskRepository handles task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	// ListBySession returns the tasks of a session, most recently created first.
	ListBySession(ctx context.Context, sessionID string) ([]Task, error)
	// MarkCompleted stores task.Completion only if the stored task is still
	// pending. It reports whether the row was changed.
	MarkCompleted(ctx context.Context, task *Task) (bool, error)
}
