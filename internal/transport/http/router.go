// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fides/internal/platform/metrics"
	"fides/pkg/platform/middleware/admin"
	"fides/pkg/platform/middleware/auth"
	"fides/pkg/platform/middleware/device"
	"fides/pkg/platform/middleware/metadata"
	request "fides/pkg/platform/middleware/request"
	"fides/pkg/platform/middleware/requesttime"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Credentials *CredentialHandler
	Laws        *LawHandler
	Federation  *FederationHandler

	JWTValidator auth.JWTValidator
	AdminToken   string
	Metrics      *metrics.Metrics
	Logger       *slog.Logger

	// Health reports readiness of the node's backing services.
	Health func() error
}

// NewRouter wires the full HTTP surface: public probes, the authenticated
// API, and the admin-token-gated operator routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(request.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Classify)
	r.Use(latency(deps.Metrics))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		if deps.JWTValidator != nil {
			api.Use(auth.RequireAuth(deps.JWTValidator, deps.Logger))
		}
		deps.Credentials.Register(api)
		deps.Laws.Register(api)
		deps.Federation.Register(api)
	})

	r.Group(func(ops chi.Router) {
		if deps.AdminToken != "" {
			ops.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
		}
		deps.Federation.RegisterAdmin(ops)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// latency records request count and duration per route pattern.
func latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, r.Method, ww.Status(), time.Since(start))
		})
	}
}
