package handler

import (
	"net/http"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Auth     *service.AuthService
	Sessions *service.SessionService
	Tasks    *service.TaskService
	Settings *service.SettingsService
	Hub      *service.Hub
	DB       domain.Database

	// LoginLimiter throttles login attempts per client address. Nil disables it.
	LoginLimiter *service.TokenBucket
	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s Services) {
	authH := NewAuthHandler(s.Auth, s.CookieSecure)
	sessionH := NewSessionHandler(s.Sessions, s.Settings)
	taskH := NewTaskHandler(s.Tasks, s.Sessions)
	settingsH := NewSettingsHandler(s.Settings)
	pageH := NewPageHandler(s.Sessions, s.Tasks, s.Settings, s.Hub)

	requireAuth := func(fn http.HandlerFunc) http.Handler { return RequireAuth(s.Auth, fn) }
	optionalAuth := func(fn http.HandlerFunc) http.Handler { return OptionalAuth(s.Auth, fn) }
	limitLogin := func(next http.Handler) http.Handler {
		if s.LoginLimiter == nil {
			return next
		}
		return RateLimit(s.LoginLimiter, next)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(s.DB))

	// JSON API.
	mux.HandleFunc("POST /api/auth/register", authH.HandleRegister)
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(authH.HandleLogin)))
	mux.HandleFunc("POST /api/auth/logout", authH.HandleLogout)
	mux.Handle("GET /api/auth/me", requireAuth(authH.HandleMe))

	mux.Handle("GET /api/settings", requireAuth(settingsH.HandleGet))
	mux.Handle("PUT /api/settings", requireAuth(settingsH.HandleUpdate))

	mux.Handle("GET /api/sessions", requireAuth(sessionH.HandleList))
	mux.Handle("POST /api/sessions", requireAuth(sessionH.HandleCreate))
	mux.Handle("GET /api/sessions/{id}", requireAuth(sessionH.HandleGet))
	for _, action := range sessionActions {
		mux.Handle("POST /api/sessions/{id}/"+action, requireAuth(sessionH.HandleCommand(action)))
	}
	mux.Handle("GET /api/sessions/{id}/tasks", requireAuth(taskH.HandleList))
	mux.Handle("POST /api/sessions/{id}/tasks", requireAuth(taskH.HandleAdd))
	mux.Handle("GET /api/tasks/{id}", requireAuth(taskH.HandleGet))
	mux.Handle("POST /api/tasks/{id}/complete", requireAuth(taskH.HandleComplete))

	// Pages.
	mux.Handle("GET /", optionalAuth(pageH.HandleHome))
	mux.HandleFunc("GET /login", authH.HandleLoginPage)
	mux.Handle("POST /login", limitLogin(http.HandlerFunc(authH.HandleLoginForm)))
	mux.HandleFunc("GET /register", authH.HandleRegisterPage)
	mux.HandleFunc("POST /register", authH.HandleRegisterForm)
	mux.HandleFunc("POST /logout", authH.HandleLogoutForm)
	mux.Handle("GET /settings", requireAuth(settingsH.HandlePage))
	mux.Handle("POST /settings", requireAuth(settingsH.HandleForm))

	mux.Handle("POST /sessions", requireAuth(pageH.HandleCreate))
	mux.Handle("GET /sessions/{id}", requireAuth(pageH.HandleSession))
	mux.Handle("GET /sessions/{id}/stream", requireAuth(pageH.HandleStream))
	for _, action := range sessionActions {
		mux.Handle("POST /sessions/{id}/"+action, requireAuth(pageH.HandleAction(action)))
	}
	mux.Handle("POST /sessions/{id}/tasks", requireAuth(pageH.HandleAddTask))
	mux.Handle("POST /tasks/{id}/complete", requireAuth(pageH.HandleCompleteTask))
}
