package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/focusvault/internal/domain"
)

// SessionRepository implements domain.SessionRepository using SQLite.
// Updates are guarded by the version column.
type SessionRepository struct {
	db *sql.DB
}

const sessionColumns = `id, name, status, paused_phase, current_cycle, time_remaining,
	work_duration, short_break_duration, long_break_duration,
	active_participants, created_by, version, created_at, last_updated`

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	participants, err := encodeParticipants(session.ActiveParticipants)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		session.ID, session.Name, session.Status, session.PausedPhase,
		session.CurrentCycle, session.TimeRemaining,
		session.WorkDuration, session.ShortBreakDuration, session.LongBreakDuration,
		participants, session.CreatedBy, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	session.Version = 1
	session.CreatedAt = now
	session.LastUpdated = now
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY last_updated DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collectSessions(rows)
}

func (r *SessionRepository) ListByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]domain.Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status IN (`+placeholders+`)
		 ORDER BY last_updated DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions by status: %w", err)
	}
	return collectSessions(rows)
}

// Update writes all mutable fields if the stored version still equals
// session.Version, then bumps the version. A stale version yields
// domain.ErrConflict; an unknown id yields domain.ErrNotFound.
func (r *SessionRepository) Update(ctx context.Context, session *domain.Session) error {
	participants, err := encodeParticipants(session.ActiveParticipants)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET
		 name = ?, status = ?, paused_phase = ?, current_cycle = ?, time_remaining = ?,
		 work_duration = ?, short_break_duration = ?, long_break_duration = ?,
		 active_participants = ?, version = version + 1, last_updated = ?
		 WHERE id = ? AND version = ?`,
		session.Name, session.Status, session.PausedPhase, session.CurrentCycle, session.TimeRemaining,
		session.WorkDuration, session.ShortBreakDuration, session.LongBreakDuration,
		participants, now, session.ID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", session.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		return domain.ErrConflict
	}

	session.Version++
	session.LastUpdated = now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	s := &domain.Session{}
	var participants string
	err := row.Scan(&s.ID, &s.Name, &s.Status, &s.PausedPhase, &s.CurrentCycle, &s.TimeRemaining,
		&s.WorkDuration, &s.ShortBreakDuration, &s.LongBreakDuration,
		&participants, &s.CreatedBy, &s.Version, &s.CreatedAt, &s.LastUpdated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participants), &s.ActiveParticipants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return s, nil
}

func collectSessions(rows *sql.Rows) ([]domain.Session, error) {
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func encodeParticipants(p domain.Participants) (string, error) {
	if p == nil {
		p = domain.Participants{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode participants: %w", err)
	}
	return string(b), nil
}
