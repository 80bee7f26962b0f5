package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/deleteflow"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/export"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/form"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/httpx"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/session"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/utilities"
)

const (
	Prefix          = "/gerenciador-api"
	RequestIDHeader = "X-Request-ID"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a snowflake id,
// and echoes it on the response.
func RequestIDMiddleware(newID func() string) func(http.Handler) http.Handler {
	if newID == nil {
		newID = utilities.NewSnowflakeID
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = newID()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request at debug level and server errors at warn.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds()) / 1000.0,
				"size", lrw.size,
				"request_id", r.Header.Get(RequestIDHeader),
			}
			if status >= http.StatusInternalServerError {
				logger.Warnw("http request", kv...)
				return
			}
			logger.Debugw("http request", kv...)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			// HSTS only over TLS.
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers mounted by RegisterRoutes.
type Deps struct {
	Logger    *zap.SugaredLogger
	Session   *session.Service
	Auth      *session.Handler
	State     *state.Handler
	Forms     *form.Handler
	Deletions *deleteflow.Handler
	Export    *export.Handler
	// Ready reports whether the record store is configured; surfaced by /health.
	Ready func() bool
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	mux := http.NewServeMux()

	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(withPrefix(pattern), h)
	}
	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(withPrefix(pattern), d.Session.Middleware(h))
	}
	// kinded routes guard the users collection with the ADMIN role.
	kinded := func(pattern string, h http.HandlerFunc) {
		mux.Handle(withPrefix(pattern), d.Session.Middleware(adminForUsers(h)))
	}

	public("GET /health", func(w http.ResponseWriter, r *http.Request) {
		store := "configured"
		if d.Ready != nil && !d.Ready() {
			store = "not configured"
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "store": store})
	})

	// session
	public("POST /session", d.Auth.Login)
	authed("GET /session", d.Auth.Me)
	authed("DELETE /session", d.Auth.Logout)

	// cache
	authed("GET /dashboard", d.State.Dashboard)
	authed("GET /snapshot", d.State.Snapshot)
	authed("POST /sync", d.State.Sync)

	// relationships and generated text
	authed("GET /patients/unassigned", d.State.UnassignedPatients)
	authed("GET /classes/{id}/students", d.State.ClassStudents)
	authed("PUT /classes/{id}/students", d.Forms.ReplaceRoster)
	authed("GET /psychoanalysts/{id}/patients", d.State.AnalystPatients)
	authed("POST /psychoanalysts/{id}/patients", d.Forms.LinkPatient)
	authed("POST /courses/description", d.Forms.GenerateDescription)
	authed("POST /patients/{id}/summary", d.Forms.SummarizeCase)

	// delete confirmation
	kinded("POST /{kind}/{id}/deletion", d.Deletions.Begin)
	authed("POST /deletions/{token}/confirm", d.Deletions.Confirm)
	authed("DELETE /deletions/{token}", d.Deletions.Cancel)

	// collections
	kinded("GET /{kind}", d.State.List)
	kinded("GET /{kind}/export", d.Export.Export)
	kinded("GET /{kind}/{id}", d.State.Get)
	kinded("POST /{kind}", d.Forms.Create)
	kinded("PUT /{kind}/{id}", d.Forms.Update)

	return RequestIDMiddleware(nil)(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}

// withPrefix turns "GET /x" into "GET /gerenciador-api/x".
func withPrefix(pattern string) string {
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		return Prefix + pattern
	}
	return method + " " + Prefix + path
}

func adminForUsers(next http.Handler) http.Handler {
	admin := session.RequireRole(entity.RoleAdmin, next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if kind, err := entity.ParseKind(r.PathValue("kind")); err == nil && kind == entity.KindUser {
			admin.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
