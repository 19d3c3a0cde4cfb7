// Package httpapi assembles the HTTP surface: the public chat webhook, the
// operator-authenticated admin API, health and metrics.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"askgate/internal/platform/middleware"
	"askgate/pkg/platform/httputil"
)

// Registrar mounts a feature's endpoints on a router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs. Webhook is mounted publicly with
// its own throttle; Admin registrars sit behind operator authentication.
type Deps struct {
	Webhook      Registrar
	Admin        []Registrar
	TokenCheck   middleware.TokenValidator
	WebhookRate  float64
	WebhookBurst int
	Logger       *slog.Logger
	Health       func() error
}

// NewRouter builds the chi router with the shared middleware stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.WebhookRate > 0 {
			r.Use(middleware.Throttle(deps.WebhookRate, deps.WebhookBurst, deps.Logger))
		}
		deps.Webhook.Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(deps.TokenCheck, deps.Logger))
		for _, reg := range deps.Admin {
			reg.Register(r)
		}
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
