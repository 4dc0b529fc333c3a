package service_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

// flakySessions fails Update calls on demand.
type flakySessions struct {
	domain.SessionRepository

	mu          sync.Mutex
	failUpdates bool
}

func (f *flakySessions) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdates = v
}

func (f *flakySessions) Update(ctx context.Context, s *domain.Session) error {
	f.mu.Lock()
	fail := f.failUpdates
	f.mu.Unlock()
	if fail {
		return errors.New("disk I/O error")
	}
	return f.SessionRepository.Update(ctx, s)
}

type sessionFixture struct {
	svc   *service.SessionService
	repo  *flakySessions
	hub   *service.Hub
	tasks domain.TaskRepository
}

func newSessionFixture(t *testing.T, checkpointEvery int) *sessionFixture {
	t.Helper()
	db := newTestDB(t)
	repo := &flakySessions{SessionRepository: db.Sessions()}
	hub := service.NewHub()
	svc := service.NewSessionService(repo, hub, service.NewTicker(0), checkpointEvery)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return &sessionFixture{svc: svc, repo: repo, hub: hub, tasks: db.Tasks()}
}

func (f *sessionFixture) create(t *testing.T, d domain.Durations) *domain.Session {
	t.Helper()
	s, err := f.svc.Create(context.Background(), "Deep Work", "alice@example.com", d)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func tickN(t *testing.T, svc *service.SessionService, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := svc.Tick(context.Background(), id); err != nil {
			t.Fatalf("Tick %d: %v", i+1, err)
		}
	}
}

func assertState(t *testing.T, svc *service.SessionService, id string, status domain.SessionStatus, cycle, remaining int) {
	t.Helper()
	s, err := svc.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if s.Status != status || s.CurrentCycle != cycle || s.TimeRemaining != remaining {
		t.Fatalf("expected %s cycle %d at %d, got %s cycle %d at %d",
			status, cycle, remaining, s.Status, s.CurrentCycle, s.TimeRemaining)
	}
}

func TestSessionService_Create(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	s := f.create(t, domain.DefaultDurations())
	if s.ID == "" {
		t.Fatal("expected an ID")
	}
	if s.Status != domain.StatusWaiting || s.CurrentCycle != 1 || s.TimeRemaining != 1500 {
		t.Fatalf("unexpected initial state: %+v", s)
	}
	if !slices.Equal(s.ActiveParticipants, domain.Participants{"alice@example.com"}) {
		t.Fatalf("expected creator in roster, got %v", s.ActiveParticipants)
	}

	for _, name := range []string{"", "   "} {
		if _, err := f.svc.Create(ctx, name, "alice@example.com", domain.DefaultDurations()); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("name %q: expected ErrInvalidInput, got %v", name, err)
		}
	}
	if _, err := f.svc.Create(ctx, "Bad", "", domain.Durations{Work: 0, ShortBreak: 1, LongBreak: 1}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("zero work duration: expected ErrInvalidInput, got %v", err)
	}

	list, err := f.svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("rejected creates must not be stored, got %d sessions", len(list))
	}
}

func TestSessionService_FullCycle(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	if _, err := f.svc.Start(ctx, s.ID, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 1500)

	for cycle := 1; cycle <= 3; cycle++ {
		tickN(t, f.svc, s.ID, 1500)
		assertState(t, f.svc, s.ID, domain.StatusShortBreak, cycle, 300)
		tickN(t, f.svc, s.ID, 300)
		assertState(t, f.svc, s.ID, domain.StatusWork, cycle+1, 1500)
	}

	tickN(t, f.svc, s.ID, 1500)
	assertState(t, f.svc, s.ID, domain.StatusLongBreak, 4, 900)

	tickN(t, f.svc, s.ID, 900)
	assertState(t, f.svc, s.ID, domain.StatusWork, 5, 1500)
}

func TestSessionService_PauseAndResume(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	if _, err := f.svc.Start(ctx, s.ID, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tickN(t, f.svc, s.ID, 1500-823)

	paused, err := f.svc.Pause(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.Status != domain.StatusPaused || paused.TimeRemaining != 823 {
		t.Fatalf("unexpected paused state: %+v", paused)
	}

	stored, err := f.repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("repo GetByID: %v", err)
	}
	if stored.TimeRemaining != 823 {
		t.Fatalf("expected 823 persisted, got %d", stored.TimeRemaining)
	}

	// A paused session does not count down.
	tickN(t, f.svc, s.ID, 10)
	assertState(t, f.svc, s.ID, domain.StatusPaused, 1, 823)

	if _, err := f.svc.Start(ctx, s.ID, 0); err != nil {
		t.Fatalf("resume: %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 823)
	tickN(t, f.svc, s.ID, 1)
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 822)
}

func TestSessionService_StartRunningIsNoop(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	started, err := f.svc.Start(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	tickN(t, f.svc, s.ID, 100)

	again, err := f.svc.Start(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if again.Version != started.Version {
		t.Fatalf("no-op start must not write, version %d -> %d", started.Version, again.Version)
	}
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 1400)
}

func TestSessionService_PauseWaiting(t *testing.T) {
	f := newSessionFixture(t, 0)
	s := f.create(t, domain.DefaultDurations())

	if _, err := f.svc.Pause(context.Background(), s.ID, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWaiting, 1, 1500)
}

func TestSessionService_Reset(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 1500+10)
	assertState(t, f.svc, s.ID, domain.StatusShortBreak, 1, 290)

	if _, err := f.svc.Reset(ctx, s.ID, 0); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWaiting, 1, 1500)

	// The clock is gone, so ticks do nothing.
	tickN(t, f.svc, s.ID, 5)
	assertState(t, f.svc, s.ID, domain.StatusWaiting, 1, 1500)
}

func TestSessionService_CompleteCycleManually(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	if _, err := f.svc.CompleteCycle(ctx, s.ID, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("completing a waiting session: expected ErrInvalidInput, got %v", err)
	}

	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 42)

	next, err := f.svc.CompleteCycle(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("CompleteCycle: %v", err)
	}
	if next.Status != domain.StatusShortBreak || next.TimeRemaining != 300 {
		t.Fatalf("unexpected state: %+v", next)
	}
	tickN(t, f.svc, s.ID, 1)
	assertState(t, f.svc, s.ID, domain.StatusShortBreak, 1, 299)
}

func TestSessionService_VersionConflict(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	if _, err := f.svc.Start(ctx, s.ID, s.Version+1); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWaiting, 1, 1500)

	started, err := f.svc.Start(ctx, s.ID, s.Version)
	if err != nil {
		t.Fatalf("Start with current version: %v", err)
	}
	if started.Version != s.Version+1 {
		t.Fatalf("expected version %d, got %d", s.Version+1, started.Version)
	}

	// The version the client saw before the start is now stale.
	if _, err := f.svc.Pause(ctx, s.ID, s.Version); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale pause, got %v", err)
	}
}

func TestSessionService_NotFound(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	if _, err := f.svc.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Start(ctx, "missing", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Start: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Join(ctx, "missing", "bob@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Join: expected ErrNotFound, got %v", err)
	}
}

func TestSessionService_JoinAndLeave(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	joined, err := f.svc.Join(ctx, s.ID, "bob@example.com")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !slices.Equal(joined.ActiveParticipants, domain.Participants{"alice@example.com", "bob@example.com"}) {
		t.Fatalf("unexpected roster: %v", joined.ActiveParticipants)
	}

	again, err := f.svc.Join(ctx, s.ID, "bob@example.com")
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if len(again.ActiveParticipants) != 2 || again.Version != joined.Version {
		t.Fatalf("second join should be a no-op, got %v at version %d", again.ActiveParticipants, again.Version)
	}

	if _, err := f.svc.Join(ctx, s.ID, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty participant: expected ErrInvalidInput, got %v", err)
	}

	left, err := f.svc.Leave(ctx, s.ID, "alice@example.com")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !slices.Equal(left.ActiveParticipants, domain.Participants{"bob@example.com"}) {
		t.Fatalf("unexpected roster after leave: %v", left.ActiveParticipants)
	}

	if _, err := f.svc.Leave(ctx, s.ID, "stranger@example.com"); err != nil {
		t.Fatalf("leaving as a non-member should be a no-op, got %v", err)
	}
}

func TestSessionService_JoinKeepsRunningClock(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 30)
	if _, err := f.svc.Join(ctx, s.ID, "bob@example.com"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 1470)
}

func TestSessionService_TransitionPersistenceFailure(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.Durations{Work: 3, ShortBreak: 2, LongBreak: 4})

	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 2)

	f.repo.setFailing(true)
	if err := f.svc.Tick(ctx, s.ID); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	// The phase did not advance and the clock holds at zero.
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 0)
	if err := f.svc.Tick(ctx, s.ID); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence on retry, got %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusWork, 1, 0)

	f.repo.setFailing(false)
	if err := f.svc.Tick(ctx, s.ID); err != nil {
		t.Fatalf("Tick after recovery: %v", err)
	}
	assertState(t, f.svc, s.ID, domain.StatusShortBreak, 1, 2)
}

func TestSessionService_CommandPersistenceFailure(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	f.repo.setFailing(true)
	if _, err := f.svc.Start(ctx, s.ID, 0); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if _, err := f.svc.Join(ctx, s.ID, "bob@example.com"); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	f.repo.setFailing(false)

	got, err := f.svc.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusWaiting || len(got.ActiveParticipants) != 1 {
		t.Fatalf("failed commands must leave the session unchanged: %+v", got)
	}
	// No clock was started for the failed start.
	tickN(t, f.svc, s.ID, 3)
	assertState(t, f.svc, s.ID, domain.StatusWaiting, 1, 1500)
}

func TestSessionService_Checkpoint(t *testing.T) {
	f := newSessionFixture(t, 5)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 4)
	stored, _ := f.repo.GetByID(ctx, s.ID)
	if stored.TimeRemaining != 1500 {
		t.Fatalf("expected no checkpoint yet, stored %d", stored.TimeRemaining)
	}

	tickN(t, f.svc, s.ID, 1)
	stored, _ = f.repo.GetByID(ctx, s.ID)
	if stored.TimeRemaining != 1495 {
		t.Fatalf("expected checkpoint at 1495, stored %d", stored.TimeRemaining)
	}
}

func TestSessionService_ShutdownCheckpoints(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 10)
	f.svc.Shutdown(ctx)

	stored, _ := f.repo.GetByID(ctx, s.ID)
	if stored.TimeRemaining != 1490 {
		t.Fatalf("expected 1490 persisted on shutdown, got %d", stored.TimeRemaining)
	}
}

func TestSessionService_Recover(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	running := f.create(t, domain.DefaultDurations())
	idle := f.create(t, domain.DefaultDurations())
	f.svc.Start(ctx, running.ID, 0)
	tickN(t, f.svc, running.ID, 100)
	f.svc.Shutdown(ctx)

	// A fresh service over the same store, as after a restart.
	restarted := service.NewSessionService(f.repo, service.NewHub(), service.NewTicker(0), 0)
	t.Cleanup(func() { restarted.Shutdown(context.Background()) })

	n, err := restarted.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered session, got %d", n)
	}

	tickN(t, restarted, running.ID, 1)
	assertState(t, restarted, running.ID, domain.StatusWork, 1, 1399)
	tickN(t, restarted, idle.ID, 1)
	assertState(t, restarted, idle.ID, domain.StatusWaiting, 1, 1500)
}

func TestSessionService_PublishesEvents(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	s := f.create(t, domain.DefaultDurations())

	events, cancel := f.hub.Subscribe(s.ID)
	defer cancel()

	f.svc.Start(ctx, s.ID, 0)
	select {
	case ev := <-events:
		if ev.Session == nil || ev.Session.Status != domain.StatusWork {
			t.Fatalf("expected work event, got %+v", ev)
		}
	default:
		t.Fatal("expected an event after start")
	}

	tickN(t, f.svc, s.ID, 3)
	select {
	case ev := <-events:
		// Tick events are merged; only the newest remaining time survives.
		if ev.Session.TimeRemaining != 1497 {
			t.Fatalf("expected 1497 in merged event, got %d", ev.Session.TimeRemaining)
		}
	default:
		t.Fatal("expected a tick event")
	}
}

func TestSessionService_TickerDrivesCountdown(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewSessionService(db.Sessions(), service.NewHub(), service.NewTicker(5*time.Millisecond), 0)
	ctx := context.Background()

	s, err := svc.Create(ctx, "Live", "alice@example.com", domain.Durations{Work: 3, ShortBreak: 60, LongBreak: 60})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Start(ctx, s.ID, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := svc.GetByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status == domain.StatusShortBreak {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ticker never completed the work phase, last state %s at %d", got.Status, got.TimeRemaining)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.Pause(ctx, s.ID, 0); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	svc.Shutdown(ctx)
}

func TestSessionService_RecoverCreditsDowntime(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	s := f.create(t, domain.DefaultDurations())
	f.svc.Start(ctx, s.ID, 0)
	tickN(t, f.svc, s.ID, 100)
	f.svc.Shutdown(ctx)

	time.Sleep(30 * time.Millisecond)

	// One tick per millisecond: the 30ms of downtime count as at least 30 ticks.
	restarted := service.NewSessionService(f.repo, service.NewHub(), service.NewTicker(time.Millisecond), 0)
	defer restarted.Shutdown(ctx)
	if _, err := restarted.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	got, err := restarted.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusWork {
		t.Fatalf("expected work, got %s", got.Status)
	}
	if got.TimeRemaining > 1370 {
		t.Fatalf("expected downtime to be credited, remaining %d", got.TimeRemaining)
	}
}

// interleavedSessions runs afterRead once, right after the next GetByID or
// List returns, to simulate a tick landing between the read and the clock
// overlay.
type interleavedSessions struct {
	domain.SessionRepository
	afterRead func()
}

func (r *interleavedSessions) fire() {
	if fn := r.afterRead; fn != nil {
		r.afterRead = nil
		fn()
	}
}

func (r *interleavedSessions) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s, err := r.SessionRepository.GetByID(ctx, id)
	r.fire()
	return s, err
}

func (r *interleavedSessions) List(ctx context.Context) ([]domain.Session, error) {
	s, err := r.SessionRepository.List(ctx)
	r.fire()
	return s, err
}

func TestSessionService_ReadRacingPhaseChange(t *testing.T) {
	ctx := context.Background()
	d := domain.Durations{Work: 10, ShortBreak: 3, LongBreak: 5}

	tests := []struct {
		name string
		read func(svc *service.SessionService, id string) (*domain.Session, error)
	}{
		{"GetByID", func(svc *service.SessionService, id string) (*domain.Session, error) {
			return svc.GetByID(ctx, id)
		}},
		{"List", func(svc *service.SessionService, id string) (*domain.Session, error) {
			sessions, err := svc.List(ctx)
			if err != nil {
				return nil, err
			}
			for i := range sessions {
				if sessions[i].ID == id {
					return &sessions[i], nil
				}
			}
			return nil, domain.ErrNotFound
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &interleavedSessions{SessionRepository: newTestDB(t).Sessions()}
			svc := service.NewSessionService(repo, service.NewHub(), service.NewTicker(0), 0)
			t.Cleanup(func() { svc.Shutdown(context.Background()) })

			s, err := svc.Create(ctx, "Deep Work", "alice@example.com", d)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := svc.Start(ctx, s.ID, 0); err != nil {
				t.Fatalf("Start: %v", err)
			}
			tickN(t, svc, s.ID, 10+2) // short break with 1s left

			// The last tick of the break commits the next work phase after
			// the store read but before the clock is applied.
			repo.afterRead = func() {
				if err := svc.Tick(ctx, s.ID); err != nil {
					t.Errorf("Tick: %v", err)
				}
			}
			got, err := tt.read(svc, s.ID)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got.Status != domain.StatusWork || got.CurrentCycle != 2 || got.TimeRemaining != 10 {
				t.Fatalf("expected work cycle 2 at 10, got %s cycle %d at %d", got.Status, got.CurrentCycle, got.TimeRemaining)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("read returned an invalid session: %v", err)
			}

			stored, err := repo.SessionRepository.GetByID(ctx, s.ID)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if got.Version != stored.Version {
				t.Fatalf("expected version %d, got %d", stored.Version, got.Version)
			}
		})
	}
}
