package handler_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func postForm(t *testing.T, client *http.Client, target string, values url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(target, values)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	return resp
}

func TestIntegration_RegisterLoginCreateSessionLogout(t *testing.T) {
	app := newTestApp(t)
	client := newClient(t)

	// 1. Register a new user.
	resp := postForm(t, client, app.srv.URL+"/register", url.Values{
		"email":        {"integ@example.com"},
		"display_name": {"Integration User"},
		"password":     {"password123"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("register: expected 303 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("register: expected redirect to /login, got %s", loc)
	}

	// 2. Login with the new credentials.
	resp = postForm(t, client, app.srv.URL+"/login", url.Values{
		"email":    {"integ@example.com"},
		"password": {"password123"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login: expected 303 redirect, got %d", resp.StatusCode)
	}

	srvURL, _ := url.Parse(app.srv.URL)
	var hasAuthToken bool
	for _, c := range client.Jar.Cookies(srvURL) {
		if c.Name == "auth_token" {
			hasAuthToken = true
		}
	}
	if !hasAuthToken {
		t.Fatal("expected auth_token cookie to be set after login")
	}

	// 3. The home page greets the signed-in user.
	body := readBody(t, app.get(t, client, "/"))
	if !strings.Contains(body, "Integration User") {
		t.Fatal("expected display name on home page")
	}

	// 4. Create a session from the form.
	resp = postForm(t, client, app.srv.URL+"/sessions", url.Values{"name": {"Writing sprint"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("create session: expected 303 redirect, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/sessions/") {
		t.Fatalf("create session: expected redirect to session page, got %s", loc)
	}

	// 5. Open the session page.
	resp = app.get(t, client, loc)
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session page: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Writing sprint") || !strings.Contains(body, "integ@example.com") {
		t.Fatal("expected session name and creator in roster")
	}

	// 6. Logout.
	resp = postForm(t, client, app.srv.URL+"/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout: expected 303 redirect, got %d", resp.StatusCode)
	}

	// 7. The session page is no longer reachable.
	resp = app.get(t, client, loc)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestIntegration_CreateSessionBlankName(t *testing.T) {
	app := newTestApp(t)
	client := app.loginClient(t, "blank@example.com")

	resp := postForm(t, client, app.srv.URL+"/sessions", url.Values{"name": {"   "}})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "session name is required") {
		t.Fatal("expected validation message on home page")
	}
}

func TestIntegration_LoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.loginClient(t, "wrong@example.com")

	resp := postForm(t, newClient(t), app.srv.URL+"/login", url.Values{
		"email":    {"wrong@example.com"},
		"password": {"not-the-password"},
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Invalid email or password") {
		t.Fatal("expected error message in login page")
	}
}

func TestIntegration_RegisterDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	app.loginClient(t, "dup@example.com")

	resp := postForm(t, newClient(t), app.srv.URL+"/register", url.Values{
		"email":    {"dup@example.com"},
		"password": {"password123"},
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "already exists") {
		t.Fatal("expected duplicate email message")
	}
}

func TestIntegration_RegisterWeakPassword(t *testing.T) {
	app := newTestApp(t)

	resp := postForm(t, newClient(t), app.srv.URL+"/register", url.Values{
		"email":    {"weak@example.com"},
		"password": {"short"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestIntegration_LoginPageRendering(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/login", "/register"} {
		resp := app.get(t, newClient(t), path)
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		if !strings.Contains(body, `name="email"`) || !strings.Contains(body, `name="password"`) {
			t.Fatalf("%s: expected email and password fields", path)
		}
	}
}

func TestIntegration_SettingsForm(t *testing.T) {
	app := newTestApp(t)
	client := app.loginClient(t, "prefs@example.com")

	resp := postForm(t, client, app.srv.URL+"/settings", url.Values{
		"work_minutes":        {"45"},
		"short_break_minutes": {"10"},
		"long_break_minutes":  {"20"},
		"theme":               {"forest"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("save settings: expected 303, got %d", resp.StatusCode)
	}

	body := readBody(t, app.get(t, client, "/settings"))
	if !strings.Contains(body, `name="work_minutes" min="1" max="180" value="45"`) {
		t.Fatal("expected saved focus length in form")
	}

	// New sessions pick up the saved focus length.
	s := app.createSession(t, client, "Long focus").Session
	if s.TimeRemaining != 45*60 {
		t.Fatalf("expected 2700s work phase, got %d", s.TimeRemaining)
	}

	resp = postForm(t, client, app.srv.URL+"/settings", url.Values{
		"work_minutes":        {"0"},
		"short_break_minutes": {"10"},
		"long_break_minutes":  {"20"},
		"theme":               {"forest"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid settings: expected 422, got %d", resp.StatusCode)
	}
}
