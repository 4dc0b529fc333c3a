package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/focusvault/internal/domain"
)

// TaskInput carries the user-supplied fields of a new task.
type TaskInput struct {
	Title              string
	Description        string
	Priority           domain.Priority
	EstimatedPomodoros int
}

// TaskService manages the shared task board of a session.
type TaskService struct {
	tasks    domain.TaskRepository
	sessions domain.SessionRepository
	hub      *Hub
	now      func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks domain.TaskRepository, sessions domain.SessionRepository, hub *Hub) *TaskService {
	return &TaskService{tasks: tasks, sessions: sessions, hub: hub, now: time.Now}
}

// Add validates and stores a new pending task on a session's board.
// Validation happens before any store call.
func (s *TaskService) Add(ctx context.Context, sessionID string, in TaskInput, createdBy string) (*domain.Task, error) {
	ctx, span := tracer.Start(ctx, "task.add")
	defer span.End()

	task, err := domain.NewTask(sessionID, in.Title, in.Description, in.Priority, in.EstimatedPomodoros, createdBy)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		recordError(span, err)
		return nil, persistenceError("get session", err)
	}

	task.ID = uuid.NewString()
	if err := s.tasks.Create(ctx, task); err != nil {
		recordError(span, err)
		return nil, persistenceError("create task", err)
	}

	s.hub.Publish(Event{SessionID: sessionID, TasksChanged: true})
	return task, nil
}

// Complete marks a task as done by completedBy. Completing an already
// completed task is a no-op and returns the task unchanged.
func (s *TaskService) Complete(ctx context.Context, taskID, completedBy string) (*domain.Task, error) {
	ctx, span := tracer.Start(ctx, "task.complete")
	defer span.End()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		recordError(span, err)
		return nil, persistenceError("get task", err)
	}
	if !task.Complete(completedBy, s.now().UTC()) {
		return task, nil
	}

	applied, err := s.tasks.MarkCompleted(ctx, task)
	if err != nil {
		recordError(span, err)
		return nil, persistenceError("complete task", err)
	}
	if !applied {
		// Someone else completed it first; return their completion.
		stored, err := s.tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, persistenceError("get task", err)
		}
		return stored, nil
	}

	s.hub.Publish(Event{SessionID: task.SessionID, TasksChanged: true})
	return task, nil
}

// GetByID returns a task by ID.
func (s *TaskService) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get task", err)
	}
	return task, nil
}

// ListBySession returns a session's tasks, most recently created first.
func (s *TaskService) ListBySession(ctx context.Context, sessionID string) ([]domain.Task, error) {
	tasks, err := s.tasks.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, persistenceError("list tasks", err)
	}
	return tasks, nil
}

// PartitionTasks splits tasks into pending and completed, preserving order.
func PartitionTasks(tasks []domain.Task) (pending, completed []domain.Task) {
	for _, t := range tasks {
		if t.Completed() {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}
	return pending, completed
}
