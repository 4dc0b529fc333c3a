package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// SessionStatus is the current phase of a focus session.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusWork       SessionStatus = "work"
	StatusShortBreak SessionStatus = "short_break"
	StatusLongBreak  SessionStatus = "long_break"
	StatusPaused     SessionStatus = "paused"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusWork, StatusShortBreak, StatusLongBreak, StatusPaused:
		return true
	}
	return false
}

// Running reports whether the countdown ticks in this status.
func (s SessionStatus) Running() bool {
	return s == StatusWork || s == StatusShortBreak || s == StatusLongBreak
}

const (
	DefaultWorkDuration       = 25 * 60
	DefaultShortBreakDuration = 5 * 60
	DefaultLongBreakDuration  = 15 * 60

	// LongBreakEvery is the number of work cycles per long break.
	LongBreakEvery = 4

	MaxSessionNameLength = 100
)

// Durations holds the phase lengths of a session, in seconds.
type Durations struct {
	Work       int
	ShortBreak int
	LongBreak  int
}

// DefaultDurations returns the classic 25/5/15 minute Pomodoro lengths.
func DefaultDurations() Durations {
	return Durations{
		Work:       DefaultWorkDuration,
		ShortBreak: DefaultShortBreakDuration,
		LongBreak:  DefaultLongBreakDuration,
	}
}

func (d Durations) Validate() error {
	if d.Work <= 0 || d.ShortBreak <= 0 || d.LongBreak <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidInput)
	}
	return nil
}

// Session is one shared focus group and its timer state.
type Session struct {
	ID     string
	Name   string
	Status SessionStatus
	// PausedPhase is the running phase the session was paused in. Empty
	// unless Status is StatusPaused.
	PausedPhase        SessionStatus
	CurrentCycle       int
	TimeRemaining      int // seconds
	WorkDuration       int // seconds
	ShortBreakDuration int // seconds
	LongBreakDuration  int // seconds
	ActiveParticipants Participants
	CreatedBy          string
	Version            int64
	CreatedAt          time.Time
	LastUpdated        time.Time
}

// NewSession validates the inputs and returns a waiting session seeded with
// its creator as the first participant.
func NewSession(name, createdBy string, d Durations) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidInput)
	}
	if len([]rune(name)) > MaxSessionNameLength {
		return nil, fmt.Errorf("%w: session name must be at most %d characters", ErrInvalidInput, MaxSessionNameLength)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		Name:               name,
		Status:             StatusWaiting,
		CurrentCycle:       1,
		TimeRemaining:      d.Work,
		WorkDuration:       d.Work,
		ShortBreakDuration: d.ShortBreak,
		LongBreakDuration:  d.LongBreak,
		CreatedBy:          createdBy,
	}
	if createdBy != "" {
		s.ActiveParticipants.Add(createdBy)
	}
	return s, nil
}

// Durations returns the configured phase lengths.
func (s *Session) Durations() Durations {
	return Durations{Work: s.WorkDuration, ShortBreak: s.ShortBreakDuration, LongBreak: s.LongBreakDuration}
}

// Phase returns the phase whose clock time_remaining belongs to: the status
// itself while running, the paused phase while paused, and work while waiting.
func (s *Session) Phase() SessionStatus {
	switch {
	case s.Status.Running():
		return s.Status
	case s.Status == StatusPaused && s.PausedPhase.Running():
		return s.PausedPhase
	default:
		return StatusWork
	}
}

// DurationOf returns the configured length of a running phase, or 0.
func (s *Session) DurationOf(phase SessionStatus) int {
	switch phase {
	case StatusWork:
		return s.WorkDuration
	case StatusShortBreak:
		return s.ShortBreakDuration
	case StatusLongBreak:
		return s.LongBreakDuration
	}
	return 0
}

// Validate checks the record invariants.
func (s *Session) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s.Status)
	}
	if s.Status == StatusPaused && !s.PausedPhase.Running() {
		return fmt.Errorf("%w: paused session has no paused phase", ErrInvalidInput)
	}
	if s.Status != StatusPaused && s.PausedPhase != "" {
		return fmt.Errorf("%w: paused phase set on %s session", ErrInvalidInput, s.Status)
	}
	if s.CurrentCycle < 1 {
		return fmt.Errorf("%w: cycle must be at least 1", ErrInvalidInput)
	}
	if err := s.Durations().Validate(); err != nil {
		return err
	}
	if limit := s.DurationOf(s.Phase()); s.TimeRemaining < 0 || s.TimeRemaining > limit {
		return fmt.Errorf("%w: time remaining %d outside [0, %d]", ErrInvalidInput, s.TimeRemaining, limit)
	}
	return nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.ActiveParticipants = slices.Clone(s.ActiveParticipants)
	return &c
}

// Participants is an ordered set of participant identifiers, kept in
// first-join order.
type Participants []string

func (p Participants) Contains(id string) bool {
	return slices.Contains(p, id)
}

// Add appends id if it is not already present. It reports whether the set changed.
func (p *Participants) Add(id string) bool {
	if id == "" || p.Contains(id) {
		return false
	}
	*p = append(*p, id)
	return true
}

// Remove deletes id, preserving the order of the rest. It reports whether the set changed.
func (p *Participants) Remove(id string) bool {
	i := slices.Index(*p, id)
	if i < 0 {
		return false
	}
	*p = slices.Delete(*p, i, i+1)
	return true
}

// SessionRepository handles session persistence. Update is conditional on
// session.Version matching the stored version and returns ErrConflict
// otherwise; on success it increments Version and sets LastUpdated.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	ListByStatus(ctx context.Context, statuses ...SessionStatus) ([]Session, error)
	Update(ctx context.Context, session *Session) error
}
