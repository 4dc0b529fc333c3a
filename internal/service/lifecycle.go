package service

import (
	"fmt"

	"github.com/msomdec/focusvault/internal/domain"
)

// The functions below are the session phase state machine. They mutate the
// given session in memory only and report whether anything changed; the
// SessionService persists the result.

// StartSession moves a waiting session into its first work phase, or resumes
// a paused session in the phase it was paused in. time_remaining is left
// untouched in both cases. Starting a running session is a no-op.
func StartSession(s *domain.Session) (bool, error) {
	switch s.Status {
	case domain.StatusWaiting:
		s.Status = domain.StatusWork
		return true, nil
	case domain.StatusPaused:
		phase := s.PausedPhase
		if !phase.Running() {
			phase = domain.StatusWork
		}
		s.Status = phase
		s.PausedPhase = ""
		return true, nil
	case domain.StatusWork, domain.StatusShortBreak, domain.StatusLongBreak:
		return false, nil
	}
	return false, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, s.Status)
}

// PauseSession stops a running phase and records the remaining time snapshot.
// Pausing a paused session is a no-op; a waiting session cannot be paused.
func PauseSession(s *domain.Session, timeRemaining int) (bool, error) {
	switch {
	case s.Status == domain.StatusPaused:
		return false, nil
	case !s.Status.Running():
		return false, fmt.Errorf("%w: session has not been started", domain.ErrInvalidInput)
	}

	if limit := s.DurationOf(s.Status); timeRemaining < 0 || timeRemaining > limit {
		return false, fmt.Errorf("%w: time remaining %d outside [0, %d]", domain.ErrInvalidInput, timeRemaining, limit)
	}

	s.PausedPhase = s.Status
	s.Status = domain.StatusPaused
	s.TimeRemaining = timeRemaining
	return true, nil
}

// ResetSession returns the session to waiting at cycle 1 with a full work
// phase, discarding the cycle count.
func ResetSession(s *domain.Session) bool {
	changed := s.Status != domain.StatusWaiting ||
		s.CurrentCycle != 1 ||
		s.TimeRemaining != s.WorkDuration ||
		s.PausedPhase != ""

	s.Status = domain.StatusWaiting
	s.PausedPhase = ""
	s.CurrentCycle = 1
	s.TimeRemaining = s.WorkDuration
	return changed
}

// CompleteCycle applies the transition for a phase whose countdown reached
// zero:
//
//	work        -> long_break  when current_cycle is a multiple of 4
//	work        -> short_break otherwise
//	short_break -> work, current_cycle+1
//	long_break  -> work, current_cycle+1
//
// time_remaining is set to the full duration of the new phase.
func CompleteCycle(s *domain.Session) error {
	switch s.Status {
	case domain.StatusWork:
		if s.CurrentCycle%domain.LongBreakEvery == 0 {
			s.Status = domain.StatusLongBreak
			s.TimeRemaining = s.LongBreakDuration
		} else {
			s.Status = domain.StatusShortBreak
			s.TimeRemaining = s.ShortBreakDuration
		}
	case domain.StatusShortBreak, domain.StatusLongBreak:
		s.Status = domain.StatusWork
		s.TimeRemaining = s.WorkDuration
		s.CurrentCycle++
	default:
		return fmt.Errorf("%w: no running phase to complete in %s session", domain.ErrInvalidInput, s.Status)
	}
	return nil
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// PhaseProgress returns how much of the current phase has elapsed, as a
// percentage in [0, 100].
func PhaseProgress(s *domain.Session) float64 {
	total := s.DurationOf(s.Phase())
	if total <= 0 {
		return 0
	}
	elapsed := total - s.TimeRemaining
	if elapsed < 0 {
		elapsed = 0
	}
	return float64(elapsed) / float64(total) * 100
}
