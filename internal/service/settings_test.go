package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

func newSettingsFixture(t *testing.T) (*service.SettingsService, *domain.User) {
	t.Helper()
	db := newTestDB(t)
	auth := service.NewAuthService(db.Users(), testJWTSecret, 4)
	user, err := auth.Register(context.Background(), "settings@example.com", "S", "password123", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return service.NewSettingsService(db.Users()), user
}

func TestSettingsService_Defaults(t *testing.T) {
	svc, user := newSettingsFixture(t)
	ctx := context.Background()

	got, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}

	d, err := svc.SessionDurations(ctx, user.ID)
	if err != nil {
		t.Fatalf("SessionDurations: %v", err)
	}
	if d != domain.DefaultDurations() {
		t.Fatalf("expected 1500/300/900, got %+v", d)
	}
}

func TestSettingsService_Update(t *testing.T) {
	svc, user := newSettingsFixture(t)
	ctx := context.Background()

	saved, err := svc.Update(ctx, user.ID, domain.Settings{WorkMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 20})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if saved.Theme != "default" {
		t.Fatalf("expected empty theme to fall back to default, got %q", saved.Theme)
	}

	d, err := svc.SessionDurations(ctx, user.ID)
	if err != nil {
		t.Fatalf("SessionDurations: %v", err)
	}
	if d != (domain.Durations{Work: 3000, ShortBreak: 600, LongBreak: 1200}) {
		t.Fatalf("unexpected durations: %+v", d)
	}
}

func TestSettingsService_Update_Invalid(t *testing.T) {
	svc, user := newSettingsFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		settings domain.Settings
	}{
		{"zero work", domain.Settings{WorkMinutes: 0, ShortBreakMinutes: 5, LongBreakMinutes: 15}},
		{"too long", domain.Settings{WorkMinutes: 181, ShortBreakMinutes: 5, LongBreakMinutes: 15}},
		{"unknown theme", domain.Settings{WorkMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15, Theme: "neon"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, user.ID, tc.settings); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	got, _ := svc.Get(ctx, user.ID)
	if got != domain.DefaultSettings() {
		t.Fatalf("rejected updates must not be stored, got %+v", got)
	}
}

func TestSettingsService_UnknownUser(t *testing.T) {
	svc, _ := newSettingsFixture(t)

	if _, err := svc.Get(context.Background(), 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
