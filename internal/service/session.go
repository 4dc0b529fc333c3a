package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/msomdec/focusvault/internal/domain"
)

var tracer = otel.Tracer("github.com/msomdec/focusvault/internal/service")

// countdown is the live clock of a running session. It is owned by the
// SessionService and only touched with its mutex held.
//
// A clock at zero whose phase transition failed to persist stays at zero and
// retries the transition on every tick.
type countdown struct {
	remaining       int
	sinceCheckpoint int
	// last is the most recently persisted state of the session.
	last *domain.Session
}

// SessionService is the authoritative owner of session timers. Participants
// issue commands through it; only its ticker decrements time or commits
// phase transitions.
type SessionService struct {
	sessions domain.SessionRepository
	hub      *Hub
	ticker   *Ticker

	// checkpointEvery is the number of ticks between time_remaining
	// checkpoints. Zero disables checkpoints.
	checkpointEvery int

	mu     sync.Mutex
	clocks map[string]*countdown
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions domain.SessionRepository, hub *Hub, ticker *Ticker, checkpointEvery int) *SessionService {
	return &SessionService{
		sessions:        sessions,
		hub:             hub,
		ticker:          ticker,
		checkpointEvery: checkpointEvery,
		clocks:          make(map[string]*countdown),
	}
}

// Create stores a new waiting session named name, created by creator with
// the given phase lengths.
func (s *SessionService) Create(ctx context.Context, name, creator string, d domain.Durations) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "session.create")
	defer span.End()

	session, err := domain.NewSession(name, creator, d)
	if err != nil {
		return nil, err
	}
	session.ID = uuid.NewString()

	if err := s.sessions.Create(ctx, session); err != nil {
		recordError(span, err)
		return nil, persistenceError("create session", err)
	}
	span.SetAttributes(attribute.String("session.id", session.ID))
	return session, nil
}

// GetByID returns a session with its live remaining time.
func (s *SessionService) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get session", err)
	}
	s.mu.Lock()
	s.overlayLocked(session)
	s.mu.Unlock()
	return session, nil
}

// List returns all sessions, most recently updated first.
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, persistenceError("list sessions", err)
	}
	s.mu.Lock()
	for i := range sessions {
		s.overlayLocked(&sessions[i])
	}
	s.mu.Unlock()
	return sessions, nil
}

// Start begins a waiting session or resumes a paused one, and hands the
// countdown to the ticker. expectedVersion, when non-zero, must match the
// stored version.
func (s *SessionService) Start(ctx context.Context, id string, expectedVersion int64) (*domain.Session, error) {
	ctx, span := s.startSpan(ctx, "session.start", id)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mutateLocked(ctx, id, expectedVersion, StartSession)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if _, ok := s.clocks[id]; !ok && next.Status.Running() {
		s.runClockLocked(next)
	}
	s.publishLocked(next)
	return next, nil
}

// Pause stops the countdown and persists the live remaining time.
func (s *SessionService) Pause(ctx context.Context, id string, expectedVersion int64) (*domain.Session, error) {
	ctx, span := s.startSpan(ctx, "session.pause", id)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mutateLocked(ctx, id, expectedVersion, func(session *domain.Session) (bool, error) {
		return PauseSession(session, session.TimeRemaining)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.stopClockLocked(id)
	s.publishLocked(next)
	return next, nil
}

// Reset returns the session to waiting at cycle 1 and stops the countdown.
func (s *SessionService) Reset(ctx context.Context, id string, expectedVersion int64) (*domain.Session, error) {
	ctx, span := s.startSpan(ctx, "session.reset", id)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mutateLocked(ctx, id, expectedVersion, func(session *domain.Session) (bool, error) {
		return ResetSession(session), nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.stopClockLocked(id)
	s.publishLocked(next)
	return next, nil
}

// CompleteCycle ends the current running phase immediately and moves to the
// next one. It is also the way to retry a transition the ticker failed to
// persist.
func (s *SessionService) CompleteCycle(ctx context.Context, id string, expectedVersion int64) (*domain.Session, error) {
	ctx, span := s.startSpan(ctx, "session.complete_cycle", id)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.completeCycleLocked(ctx, id, expectedVersion)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if !s.ticker.Running(id) {
		s.ticker.Run(id, s.loopTick(id))
	}
	return next, nil
}

// Join adds participant to the session roster. Joining twice is a no-op.
func (s *SessionService) Join(ctx context.Context, id, participant string) (*domain.Session, error) {
	ctx, span := s.startSpan(ctx, "session.join", id)
	defer span.End()

	if participant == "" {
		return nil, fmt.Errorf("%w: participant is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mutateLocked(ctx, id, 0, func(session *domain.Session) (bool, error) {
		return session.ActiveParticipants.Add(participant), nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.publishLocked(next)
	return next, nil
}

// Leave removes participant from the session roster. Leaving a session one
// is not part of is a no-op.
func (s *SessionService) Leave(ctx context.Context, id, participant string) (*domain.Session, error) {
	ctx, span := s.startSpan(ctx, "session.leave", id)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mutateLocked(ctx, id, 0, func(session *domain.Session) (bool, error) {
		return session.ActiveParticipants.Remove(participant), nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.publishLocked(next)
	return next, nil
}

// Tick advances the countdown of a running session by one step. When the
// countdown reaches zero the phase transition is persisted before the clock
// continues; if that write fails the clock stays at zero and the error is
// returned. Ticking a session with no live clock is a no-op.
func (s *SessionService) Tick(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked(ctx, id, 1)
}

// Recover hands every running session found in the store to the ticker.
// It is called once at startup.
func (s *SessionService) Recover(ctx context.Context) (int, error) {
	running, err := s.sessions.ListByStatus(ctx, domain.StatusWork, domain.StatusShortBreak, domain.StatusLongBreak)
	if err != nil {
		return 0, persistenceError("list running sessions", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range running {
		session := &running[i]
		// The phase kept running while the server was down.
		if interval := s.ticker.Interval(); interval > 0 {
			missed := int(time.Since(session.LastUpdated) / interval)
			session.TimeRemaining = max(session.TimeRemaining-missed, 0)
		}
		s.runClockLocked(session)
	}
	return len(running), nil
}

// Shutdown stops all countdown loops and checkpoints the live clocks.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.ticker.Shutdown()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clocks {
		if err := s.checkpointLocked(ctx, id, c); err != nil {
			slog.Error("checkpoint session on shutdown", "session_id", id, "error", err)
		}
		delete(s.clocks, id)
	}
}

func (s *SessionService) loopTick(id string) func(ctx context.Context, steps int) {
	return func(ctx context.Context, steps int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Stop may have raced with this tick.
		if ctx.Err() != nil {
			return
		}
		if err := s.tickLocked(ctx, id, steps); err != nil {
			slog.Error("session tick", "session_id", id, "error", err)
		}
	}
}

// tickLocked advances the clock of id by steps seconds. Steps past the end
// of the phase are dropped; the next phase starts at its full length.
func (s *SessionService) tickLocked(ctx context.Context, id string, steps int) error {
	c, ok := s.clocks[id]
	if !ok {
		return nil
	}

	if c.remaining > 0 {
		steps = min(steps, c.remaining)
		c.remaining -= steps
		c.sinceCheckpoint += steps
	}
	if c.remaining > 0 {
		if s.checkpointEvery > 0 && c.sinceCheckpoint >= s.checkpointEvery {
			if err := s.checkpointLocked(ctx, id, c); err != nil {
				slog.Warn("checkpoint session", "session_id", id, "error", err)
			}
		}
		if c.last != nil {
			snapshot := c.last.Clone()
			snapshot.TimeRemaining = c.remaining
			s.hub.Publish(Event{SessionID: id, Session: snapshot})
		}
		return nil
	}

	_, err := s.completeCycleLocked(ctx, id, 0)
	return err
}

// completeCycleLocked persists the transition out of the current phase. On
// failure the clock is left untouched.
func (s *SessionService) completeCycleLocked(ctx context.Context, id string, expectedVersion int64) (*domain.Session, error) {
	next, err := s.mutateLocked(ctx, id, expectedVersion, func(session *domain.Session) (bool, error) {
		return true, CompleteCycle(session)
	})
	if err != nil {
		return nil, err
	}

	c := s.clockLocked(id)
	c.remaining = next.TimeRemaining
	c.sinceCheckpoint = 0
	c.last = next.Clone()

	slog.Info("session phase changed", "session_id", id, "status", next.Status, "cycle", next.CurrentCycle)
	s.publishLocked(next)
	return next, nil
}

// mutateLocked loads the session, applies fn to a copy and persists the copy
// with an optimistic version check. The stored session is only replaced if
// the write succeeds. When expectedVersion is zero a conflict caused by a
// concurrent writer is retried once against the fresh record.
func (s *SessionService) mutateLocked(ctx context.Context, id string, expectedVersion int64, fn func(*domain.Session) (bool, error)) (*domain.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		current, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return nil, persistenceError("get session", err)
		}
		s.overlayLocked(current)

		if expectedVersion != 0 && current.Version != expectedVersion {
			return nil, fmt.Errorf("%w: session is at version %d, not %d", domain.ErrConflict, current.Version, expectedVersion)
		}

		next := current.Clone()
		changed, err := fn(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}
		if err := next.Validate(); err != nil {
			return nil, err
		}

		err = s.sessions.Update(ctx, next)
		if errors.Is(err, domain.ErrConflict) && expectedVersion == 0 {
			continue
		}
		if err != nil {
			return nil, persistenceError("update session", err)
		}
		if c, ok := s.clocks[id]; ok {
			c.last = next.Clone()
		}
		return next, nil
	}
	return nil, fmt.Errorf("%w: session %s changed concurrently", domain.ErrConflict, id)
}

func (s *SessionService) checkpointLocked(ctx context.Context, id string, c *countdown) error {
	c.sinceCheckpoint = 0
	_, err := s.mutateLocked(ctx, id, 0, func(session *domain.Session) (bool, error) {
		return session.Status.Running(), nil
	})
	return err
}

func (s *SessionService) clockLocked(id string) *countdown {
	c, ok := s.clocks[id]
	if !ok {
		c = &countdown{}
		s.clocks[id] = c
	}
	return c
}

func (s *SessionService) runClockLocked(session *domain.Session) {
	c := s.clockLocked(session.ID)
	c.remaining = session.TimeRemaining
	c.sinceCheckpoint = 0
	c.last = session.Clone()
	s.ticker.Run(session.ID, s.loopTick(session.ID))
}

func (s *SessionService) stopClockLocked(id string) {
	s.ticker.Stop(id)
	delete(s.clocks, id)
}

// overlayLocked replaces the stored remaining time of a running session with
// the live clock value. A read that raced with a tick can be older than the
// clock's last write; it is replaced by that write so the clock never lands
// on the wrong phase.
func (s *SessionService) overlayLocked(session *domain.Session) {
	c, ok := s.clocks[session.ID]
	if !ok {
		return
	}
	if c.last != nil && c.last.Version > session.Version {
		*session = *c.last.Clone()
	}
	if session.Status.Running() {
		session.TimeRemaining = c.remaining
	}
}

func (s *SessionService) publishLocked(session *domain.Session) {
	s.hub.Publish(Event{SessionID: session.ID, Session: session})
}

func (s *SessionService) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("session.id", id)))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// persistenceError wraps a record store failure. Not-found and conflict
// errors are domain outcomes and pass through unchanged.
func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
