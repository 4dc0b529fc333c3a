package service

import (
	"context"
	"fmt"

	"github.com/msomdec/focusvault/internal/domain"
)

// SettingsService reads and stores per-user Pomodoro preferences.
type SettingsService struct {
	users domain.UserRepository
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(users domain.UserRepository) *SettingsService {
	return &SettingsService{users: users}
}

// Get returns the user's settings.
func (s *SettingsService) Get(ctx context.Context, userID int64) (domain.Settings, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.Settings{}, persistenceError("get user", err)
	}
	return user.Settings, nil
}

// Update validates and stores the user's settings. An empty theme falls back
// to the default one.
func (s *SettingsService) Update(ctx context.Context, userID int64, settings domain.Settings) (domain.Settings, error) {
	if settings.Theme == "" {
		settings.Theme = domain.DefaultSettings().Theme
	}
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	if err := s.users.UpdateSettings(ctx, userID, settings); err != nil {
		return domain.Settings{}, persistenceError("update settings", err)
	}
	return settings, nil
}

// SessionDurations returns the phase lengths new sessions created by the
// user should start with.
func (s *SettingsService) SessionDurations(ctx context.Context, userID int64) (domain.Durations, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return domain.Durations{}, fmt.Errorf("session durations: %w", err)
	}
	if settings.Validate() != nil {
		return domain.DefaultDurations(), nil
	}
	return settings.Durations(), nil
}
