// Package httpx contains the HTTP delivery layer (chi handlers) for the Veil
// service. It maps HTTP requests to the application service while enforcing
// body limits, security headers, and error translation. Handlers are split
// across files (create.go, retrieve.go, extend.go, health.go, errors.go).
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veil-sh/veil/internal/app"
	"github.com/veil-sh/veil/internal/metrics"
	"github.com/veil-sh/veil/internal/policy"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	Create(ctx context.Context, in app.CreateInput) (app.CreateOutput, error)
	Retrieve(ctx context.Context, id, passphrase string) (app.RetrieveOutput, error)
	Extend(ctx context.Context, id, passphrase string, req policy.ExtendRequest) (app.ExtendOutput, error)
}

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service      ServicePort
	MaxBody      int64                       // maximum accepted request body size
	Readiness    func(context.Context) error // optional readiness probe
	Metrics      metrics.SnapshotProvider    // optional counter snapshot for /metrics
	MetricsToken string                      // optional bearer token guarding /metrics
}

// New returns a configured Handler.
// svc: application service port implementation.
// maxBody: maximum allowed request body size (0 disables the check).
// readiness: optional probe function for /readyz (nil => always ready).
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs an http.Handler with all routes mounted and the shared
// middleware stack applied.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(CorrelationIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(secureHeaders)

	r.Route("/api/secrets", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Post("/{id}", h.handleRetrieve)
		r.Post("/{id}/extend", h.handleExtend)
	})
	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if h.Metrics != nil {
		r.Get("/metrics", metrics.Handler(h.Metrics, h.MetricsToken))
	}
	return r
}

// secureHeaders adds standard security and cache-control headers. Every
// response may carry a secret, so nothing is cacheable.
func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
