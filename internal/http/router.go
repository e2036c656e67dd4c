// Package httpapi assembles the public router: review endpoints behind
// authentication, plus unauthenticated health and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	reviewhandler "bursary/internal/review/handler"
	authmw "bursary/pkg/platform/middleware/auth"
	requestmw "bursary/pkg/platform/middleware/request"
	"bursary/pkg/platform/middleware/requesttime"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Review    *reviewhandler.Handler
	Validator authmw.JWTValidator
	Logger    *slog.Logger

	// Readiness dependencies; nil entries are skipped.
	Postgres HealthChecker
	Redis    HealthChecker
}

// NewRouter wires all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestmw.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.Validator, deps.Logger))
		deps.Review.Register(r)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz checks the backing stores so the orchestrator only routes
// traffic once decisions can actually commit.
func handleReadyz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for name, checker := range map[string]HealthChecker{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		} {
			if checker == nil {
				continue
			}
			if err := checker.Health(ctx); err != nil {
				deps.Logger.WarnContext(ctx, "readiness check failed",
					"dependency", name,
					"error", err,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable","dependency":"` + name + `"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
