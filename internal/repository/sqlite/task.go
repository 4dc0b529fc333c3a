package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/focusvault/internal/domain"
)

// TaskRepository implements domain.TaskRepository using SQLite.
type TaskRepository struct {
	db *sql.DB
}

const taskColumns = `id, session_id, title, description, priority, estimated_pomodoros,
	created_by, created_at, completed_by, completed_at`

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.Completed() {
		return fmt.Errorf("%w: new tasks must be pending", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, session_id, title, description, priority, estimated_pomodoros, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.SessionID, task.Title, task.Description, task.Priority,
		task.EstimatedPomodoros, task.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	task.CreatedAt = now
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *domain.Task) (bool, error) {
	if !task.Completed() {
		return false, fmt.Errorf("%w: task has no completion", domain.ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET completed = 1, completed_by = ?, completed_at = ?
		 WHERE id = ? AND completed = 0`,
		task.Completion.By, task.Completion.At.UTC(), task.ID,
	)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 1 {
		return true, nil
	}

	if _, err := r.GetByID(ctx, task.ID); err != nil {
		return false, err
	}
	return false, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	t := &domain.Task{}
	var completedBy sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &t.Priority, &t.EstimatedPomodoros,
		&t.CreatedBy, &t.CreatedAt, &completedBy, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedBy.Valid {
		t.Completion = &domain.Completion{By: completedBy.String, At: completedAt.Time}
	}
	return t, nil
}
