package main

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tanlink/tanlink"
	"github.com/tanlink/tanlink/middleware"
)

type server struct {
	engine *tanlink.Engine
	logger *zap.Logger
}

func newServer(engine *tanlink.Engine, logger *zap.Logger) *server {
	return &server{engine: engine, logger: logger}
}

func (s *server) routes(metricsHandler http.Handler) http.Handler {
	guard := middleware.Guard(s.engine, middleware.Options{Logger: s.logger})
	adminGuard := middleware.Guard(s.engine, middleware.Options{
		RequireAdmin: true,
		ValidateCSRF: true,
		Logger:       s.logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.loginForm)
	mux.HandleFunc("POST /login", s.login)
	mux.Handle("POST /logout", guard(http.HandlerFunc(s.logout)))
	mux.Handle("POST /admin/links", adminGuard(http.HandlerFunc(s.createLink)))
	mux.Handle("POST /admin/purge", adminGuard(http.HandlerFunc(s.purge)))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("GET /{key}", s.redirect)

	return mux
}

// accessLog tags each request with an ID and logs method, path, and
// duration once the handler returns.
func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<title>tanlink</title>
<h1>Sign in</h1>
{{if .Failed}}<p>Sign-in failed. Check your credentials or wait and retry.</p>{{end}}
<form method="post" action="/login">
  <input name="username" placeholder="username" autocomplete="username">
  <input name="password" type="password" placeholder="password" autocomplete="current-password">
  <button type="submit">Sign in</button>
</form>
`))

var homeTemplate = template.Must(template.New("home").Parse(`<!doctype html>
<title>tanlink</title>
<h1>tanlink</h1>
{{if .Created}}<p>Created: <a href="/{{.Created}}">/{{.Created}}</a></p>{{end}}
{{if .Admin}}
<form method="post" action="/admin/links">
  <input type="hidden" name="csrf" value="{{.Csrf}}">
  <input name="url" placeholder="https://example.com/long">
  <input name="key" placeholder="custom key (optional)">
  <input name="restrict_ip" placeholder="restrict to IP (optional)">
  <button type="submit">Shorten</button>
</form>
<form method="post" action="/admin/purge">
  <input type="hidden" name="csrf" value="{{.Csrf}}">
  <button type="submit">Purge all links</button>
</form>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{else}}
<p>Append ?url=https://… to shorten, or <a href="/login">sign in</a> to manage links.</p>
{{end}}
`))

func (s *server) loginForm(w http.ResponseWriter, r *http.Request) {
	data := struct{ Failed bool }{Failed: r.URL.Query().Get("e") != ""}
	if err := loginTemplate.Execute(w, data); err != nil {
		s.logger.Error("rendering login page", zap.Error(err))
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	ctx := tanlink.WithClientIP(r.Context(), middleware.ClientIP(r))

	signed, err := s.engine.Login(ctx, r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		if tanlink.IsAuthenticationFailure(err) {
			http.Redirect(w, r, "/login?e=1", http.StatusFound)
			return
		}
		s.logger.Error("login", zap.Error(err))
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	middleware.SetSessionCookie(w, s.engine, signed)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	if err := s.engine.Logout(r.Context(), identity); err != nil {
		s.logger.Error("logout", zap.Error(err))
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	middleware.ClearSessionCookie(w, s.engine)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// home serves the landing page, the anonymous shortener when a url
// query parameter is present, and the admin form for a signed-in admin.
func (s *server) home(w http.ResponseWriter, r *http.Request) {
	ctx := tanlink.WithClientIP(r.Context(), middleware.ClientIP(r))

	if destination := r.URL.Query().Get("url"); destination != "" {
		restrictedIP := ""
		if r.URL.Query().Get("restrict") != "" {
			restrictedIP = middleware.ClientIP(r)
		}

		key, err := s.engine.CreateLink(ctx, destination, restrictedIP)
		if err != nil {
			if tanlink.IsValidationFailure(err) {
				http.Error(w, "invalid url", http.StatusBadRequest)
				return
			}
			s.logger.Error("anonymous shorten", zap.Error(err))
			http.Error(w, "service unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "https://%s/%s\n", r.Host, key)
		return
	}

	data := struct {
		Admin   bool
		Csrf    string
		Created string
	}{Created: r.URL.Query().Get("created")}

	// The landing page renders for everyone; the admin form only when a
	// live admin session presents itself. An authenticated view rotates
	// the token like every guarded request so expiry keeps sliding.
	if cookie, err := r.Cookie(s.engine.CookieName()); err == nil {
		identity, err := s.engine.Authenticate(ctx, cookie.Value)
		if err == nil && s.engine.AuthorizeAdmin(identity) == nil {
			csrfToken, err := s.engine.EnsureCSRFToken(ctx, identity)
			if err != nil {
				s.logger.Error("ensuring csrf token", zap.Error(err))
				http.Error(w, "service unavailable", http.StatusInternalServerError)
				return
			}

			rotated, err := s.engine.Rotate(ctx, identity)
			if err != nil {
				s.logger.Error("rotating session", zap.Error(err))
				http.Error(w, "service unavailable", http.StatusInternalServerError)
				return
			}
			middleware.SetSessionCookie(w, s.engine, rotated)

			data.Admin = true
			data.Csrf = csrfToken
		}
	}

	if err := homeTemplate.Execute(w, data); err != nil {
		s.logger.Error("rendering home page", zap.Error(err))
	}
}

func (s *server) redirect(w http.ResponseWriter, r *http.Request) {
	ctx := tanlink.WithClientIP(r.Context(), middleware.ClientIP(r))

	mapping, err := s.engine.ResolveLink(ctx, r.PathValue("key"))
	if err != nil {
		switch {
		case tanlink.IsNotFoundFailure(err):
			http.NotFound(w, r)
		case tanlink.IsAuthorizationFailure(err):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			s.logger.Error("resolving link", zap.Error(err))
			http.Error(w, "service unavailable", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, mapping.URL, http.StatusFound)
}

func (s *server) createLink(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	destination := r.FormValue("url")
	restrictedIP := r.FormValue("restrict_ip")

	var (
		key = r.FormValue("key")
		err error
	)
	if key == "" {
		key, err = s.engine.CreateLink(r.Context(), destination, restrictedIP)
	} else {
		err = s.engine.CreateNamedLink(r.Context(), key, destination, restrictedIP)
	}
	if err != nil {
		switch {
		case tanlink.IsValidationFailure(err):
			http.Error(w, "invalid key or url", http.StatusBadRequest)
		case tanlink.IsConflictFailure(err):
			http.Error(w, "key already taken", http.StatusConflict)
		default:
			s.logger.Error("creating link", zap.Error(err))
			http.Error(w, "service unavailable", http.StatusInternalServerError)
		}
		return
	}

	s.rotateCsrf(r, identity)
	http.Redirect(w, r, "/?created="+key, http.StatusSeeOther)
}

func (s *server) purge(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())

	purged, err := s.engine.PurgeLinks(r.Context())
	if err != nil {
		s.logger.Error("purging links", zap.Error(err))
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	s.rotateCsrf(r, identity)
	s.logger.Info("links purged", zap.Int("count", purged))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// rotateCsrf replaces the anti-forgery token after a committed
// mutation. A write failure is logged, never rolled back.
func (s *server) rotateCsrf(r *http.Request, identity string) {
	if _, err := s.engine.RotateCSRF(r.Context(), identity); err != nil {
		s.logger.Warn("rotating csrf token", zap.Error(err))
	}
}
