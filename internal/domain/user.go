package domain

import (
	"context"
	"fmt"
	"time"
)

// User represents a registered user of the application. Email doubles as
// the participant identifier in session rosters.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Settings     Settings
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Settings are a user's Pomodoro preferences. Durations are in minutes and
// seed the phase lengths of sessions the user creates.
type Settings struct {
	WorkMinutes       int    `json:"work_minutes"`
	ShortBreakMinutes int    `json:"short_break_minutes"`
	LongBreakMinutes  int    `json:"long_break_minutes"`
	NotificationSound bool   `json:"notification_sound"`
	AutoStartBreaks   bool   `json:"auto_start_breaks"`
	Theme             string `json:"theme"`
}

const maxPhaseMinutes = 180

var themes = map[string]bool{"default": true, "dark": true, "forest": true}

func DefaultSettings() Settings {
	return Settings{
		WorkMinutes:       25,
		ShortBreakMinutes: 5,
		LongBreakMinutes:  15,
		NotificationSound: true,
		Theme:             "default",
	}
}

// ValidatePhaseMinutes checks that every phase length is within
// [1, 180] minutes.
func ValidatePhaseMinutes(minutes ...int) error {
	for _, m := range minutes {
		if m < 1 || m > maxPhaseMinutes {
			return fmt.Errorf("%w: durations must be between 1 and %d minutes", ErrInvalidInput, maxPhaseMinutes)
		}
	}
	return nil
}

func (s Settings) Validate() error {
	if err := ValidatePhaseMinutes(s.WorkMinutes, s.ShortBreakMinutes, s.LongBreakMinutes); err != nil {
		return err
	}
	if !themes[s.Theme] {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidInput, s.Theme)
	}
	return nil
}

// Durations converts the minute settings into session phase lengths.
func (s Settings) Durations() Durations {
	return Durations{
		Work:       s.WorkMinutes * 60,
		ShortBreak: s.ShortBreakMinutes * 60,
		LongBreak:  s.LongBreakMinutes * 60,
	}
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateSettings(ctx context.Context, id int64, settings Settings) error
}
