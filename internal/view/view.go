// Package view holds the templ components for FocusVault pages and the
// fragments patched into them over SSE. Run templ generate after editing a
// .templ file.
package view

import (
	"strconv"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

// Element IDs patched over SSE.
const (
	TimerID     = "timer"
	TaskBoardID = "task-board"
	FlashID     = "flash"
)

var statusLabels = map[domain.SessionStatus]string{
	domain.StatusWaiting:    "Ready to focus",
	domain.StatusWork:       "Focus time",
	domain.StatusShortBreak: "Short break",
	domain.StatusLongBreak:  "Long break",
	domain.StatusPaused:     "Paused",
}

// StatusLabel returns the human-readable name of a session status.
func StatusLabel(s domain.SessionStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

var themeNames = []string{"default", "dark", "forest"}

func themeName(user *domain.User) string {
	if user != nil && user.Settings.Theme != "" {
		return user.Settings.Theme
	}
	return domain.DefaultSettings().Theme
}

func progressValue(s *domain.Session) string {
	return strconv.FormatFloat(service.PhaseProgress(s), 'f', 1, 64)
}
