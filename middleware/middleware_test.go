package middleware

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tanlink/tanlink"
	"github.com/tanlink/tanlink/password"
)

const (
	guardAdminUser     = "admin"
	guardAdminPassword = "open sesame 123"
)

func newGuardTest(t *testing.T) (*tanlink.Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	salt := []byte("0123456789abcdef")
	hash := password.Derive(guardAdminPassword, salt, 10_000, 32)

	cfg := tanlink.Config{
		Secret: []byte("guard-test-secret"),
		Admin: tanlink.AdminConfig{
			Username:     guardAdminUser,
			PasswordHash: hex.EncodeToString(hash),
			PasswordSalt: hex.EncodeToString(salt),
			Iterations:   10_000,
		},
		Password: tanlink.PasswordConfig{Iterations: 10_000},
		Audit:    tanlink.AuditConfig{Enabled: false},
	}

	engine, err := tanlink.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("Build: %v", err)
	}

	return engine, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func loginToken(t *testing.T, engine *tanlink.Engine, username, pass string) string {
	t.Helper()
	ctx := tanlink.WithClientIP(t.Context(), "192.0.2.1")
	signed, err := engine.Login(ctx, username, pass)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return signed
}

func okHandler(gotIdentity *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotIdentity = Identity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardRedirectsWithoutCookie(t *testing.T) {
	engine, done := newGuardTest(t)
	defer done()

	var identity string
	handler := Guard(engine, Options{})(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("location = %q, want /login", loc)
	}
	if identity != "" {
		t.Fatal("handler ran without authentication")
	}
}

func TestGuardAuthenticatesAndRotates(t *testing.T) {
	engine, done := newGuardTest(t)
	defer done()

	signed := loginToken(t, engine, guardAdminUser, guardAdminPassword)

	var identity string
	handler := Guard(engine, Options{})(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: signed})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if identity != guardAdminUser {
		t.Fatalf("identity = %q, want %q", identity, guardAdminUser)
	}

	var rotated string
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == engine.CookieName() {
			rotated = cookie.Value
		}
	}
	if rotated == "" {
		t.Fatal("no session cookie set")
	}
	if rotated == signed {
		t.Fatal("token was not rotated")
	}

	// The presented token died with the rotation.
	ctx := tanlink.WithClientIP(t.Context(), "192.0.2.1")
	if _, err := engine.Authenticate(ctx, signed); err == nil {
		t.Fatal("old token still authenticates")
	}
	if _, err := engine.Authenticate(ctx, rotated); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestGuardRevokedTokenRedirects(t *testing.T) {
	engine, done := newGuardTest(t)
	defer done()

	signed := loginToken(t, engine, guardAdminUser, guardAdminPassword)
	if err := engine.Logout(t.Context(), guardAdminUser); err != nil {
		t.Fatalf("logout: %v", err)
	}

	var identity string
	handler := Guard(engine, Options{})(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: signed})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
}

func TestGuardRequireAdmin(t *testing.T) {
	engine, done := newGuardTest(t)
	defer done()

	if err := engine.CreateUser(t.Context(), "alice", "a long enough password"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	signed := loginToken(t, engine, "alice", "a long enough password")

	var identity string
	handler := Guard(engine, Options{RequireAdmin: true})(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: signed})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if identity != "" {
		t.Fatal("handler ran for non-admin")
	}
}

func TestGuardValidatesCSRFOnPost(t *testing.T) {
	engine, done := newGuardTest(t)
	defer done()

	signed := loginToken(t, engine, guardAdminUser, guardAdminPassword)
	csrfToken, err := engine.EnsureCSRFToken(t.Context(), guardAdminUser)
	if err != nil {
		t.Fatalf("ensure csrf: %v", err)
	}

	var identity string
	handler := Guard(engine, Options{RequireAdmin: true, ValidateCSRF: true})(okHandler(&identity))

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/links", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: engine.CookieName(), Value: signed})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		// Follow the rotation so the next request presents the live token.
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == engine.CookieName() && cookie.Value != "" {
				signed = cookie.Value
			}
		}
		return rec
	}

	if rec := post(url.Values{}); rec.Code != http.StatusForbidden {
		t.Fatalf("missing csrf: status = %d, want 403", rec.Code)
	}
	if rec := post(url.Values{"csrf": {"wrong"}}); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong csrf: status = %d, want 403", rec.Code)
	}
	if rec := post(url.Values{"csrf": {csrfToken}}); rec.Code != http.StatusOK {
		t.Fatalf("valid csrf: status = %d, want 200", rec.Code)
	}
	if identity != guardAdminUser {
		t.Fatalf("identity = %q", identity)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "10.1.2.3:4567", "", "10.1.2.3"},
		{"forwarded single", "10.1.2.3:4567", "198.51.100.7", "198.51.100.7"},
		{"forwarded chain", "10.1.2.3:4567", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"no port", "10.1.2.3", "", "10.1.2.3"},
		{"nothing", "", "", "unknown"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if got := ClientIP(req); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
