package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
	"github.com/langalex/henry/internal/obs"
	"github.com/langalex/henry/internal/stream"
)

const maxBodyBytes = 1 << 20

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe interface {
	Ping(ctx context.Context) error
}

// Options wires the services behind the HTTP boundary.
type Options struct {
	Version string
	Ready   ReadyProbe

	Auth   *auth.Service
	Events *events.Service
	Ledger *ledger.Service
	Audit  *audit.Recorder
	Stream *stream.Stream

	// AppURL is the public front-end address used for redirects.
	AppURL         string
	CookieName     string
	CookieSecure   bool
	AllowedOrigins []string

	RateBurst      int
	RatePerSec     int
	LoginPerMinute int
}

// API is the HTTP layer.
type API struct {
	opts   Options
	router chi.Router
}

// New validates opts and builds the routes.
func New(opts Options) (*API, error) {
	if opts.Auth == nil || opts.Events == nil || opts.Ledger == nil || opts.Audit == nil {
		return nil, errors.New("httpapi: auth, events, ledger and audit services are required")
	}
	if opts.CookieName == "" {
		opts.CookieName = "auth-session"
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}
	if opts.LoginPerMinute <= 0 {
		opts.LoginPerMinute = 10
	}
	a := &API{opts: opts}
	a.router = a.routes()
	return a, nil
}

// Handler returns the root handler, traced with OpenTelemetry.
func (a *API) Handler() http.Handler {
	return otelhttp.NewHandler(a.router, "henry-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + obs.CanonicalPath(r.URL.Path)
		}))
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(func(next http.Handler) http.Handler { return obs.Instrument(next, routePattern) })
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.opts.RateBurst, a.opts.RatePerSec) })
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, maxBodyBytes) })

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.withSession)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(a.opts.LoginPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, r, http.StatusTooManyRequests, "too many login attempts")
				})))
			r.Post("/auth/signup", a.signup)
			r.Post("/auth/login", a.requestLoginLink)
		})
		r.Get("/auth/verify", a.verify)
		r.Post("/auth/logout", a.logout)
		r.Get("/me", a.me)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", a.listUsers)
			r.Post("/", a.createUser)
			r.Get("/{userID}", a.getUser)
			r.Put("/{userID}", a.updateUser)
			r.Delete("/{userID}", a.deleteUser)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", a.listEvents)
			r.Post("/", a.createEvent)
			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", a.getEvent)
				r.Put("/", a.updateEvent)
				r.Delete("/", a.deleteEvent)
				r.Post("/jobs", a.createJob)
				r.Put("/jobs/{jobID}", a.updateJob)
				r.Delete("/jobs/{jobID}", a.deleteJob)
				r.Post("/materials", a.createMaterial)
				r.Put("/materials/{materialID}", a.updateMaterial)
				r.Delete("/materials/{materialID}", a.deleteMaterial)
			})
		})

		r.Route("/{kind}/{resourceID}/assignments", func(r chi.Router) {
			r.Get("/", a.listAssignments)
			r.Post("/", a.assign)
			r.Delete("/{userID}", a.unassign)
		})

		r.Get("/audit-log", a.auditPage)
		r.Get("/audit-log/stream", a.auditStream)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "henry-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.opts.Ready != nil {
		if err := a.opts.Ready.Ping(r.Context()); err != nil {
			l := obs.Logger()
			l.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
