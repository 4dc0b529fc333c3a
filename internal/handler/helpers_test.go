package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/focusvault/internal/handler"
	"github.com/msomdec/focusvault/internal/repository/sqlite"
	"github.com/msomdec/focusvault/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

type testApp struct {
	srv      *httptest.Server
	db       *sqlite.DB
	services handler.Services
}

func newTestServices(t *testing.T) (handler.Services, *sqlite.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hub := service.NewHub()
	sessions := service.NewSessionService(db.Sessions(), hub, service.NewTicker(0), 0)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	return handler.Services{
		Auth:     service.NewAuthService(db.Users(), testJWTSecret, 4),
		Sessions: sessions,
		Tasks:    service.NewTaskService(db.Tasks(), db.Sessions(), hub),
		Settings: service.NewSettingsService(db.Users()),
		Hub:      hub,
		DB:       db,
	}, db
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	services, db := newTestServices(t)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, services)
	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, db: db, services: services}
}

// newClient returns a client with its own cookie jar that does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// loginClient registers email through the API and returns a client holding
// its auth cookie.
func (a *testApp) loginClient(t *testing.T, email string) *http.Client {
	t.Helper()
	client := newClient(t)

	resp := a.postJSON(t, client, "/api/auth/register", map[string]string{
		"email": email, "password": "password123", "confirmPassword": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", email, resp.StatusCode)
	}

	resp = a.postJSON(t, client, "/api/auth/login", map[string]string{
		"email": email, "password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
	return client
}

func (a *testApp) postJSON(t *testing.T, client *http.Client, path string, body any) *http.Response {
	t.Helper()
	return a.sendJSON(t, client, http.MethodPost, path, body)
}

func (a *testApp) sendJSON(t *testing.T, client *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (a *testApp) get(t *testing.T, client *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(a.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
