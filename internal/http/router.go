// Package httpapi assembles the service router: the middleware chain,
// the owner-scoped feature routes, and the operational endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	contacthandler "contactdir/internal/contact/handler"
	"contactdir/internal/platform/middleware"
	platformredis "contactdir/internal/platform/redis"
	cachehandler "contactdir/internal/searchcache/handler"
	taghandler "contactdir/internal/tag/handler"
	"contactdir/pkg/platform/httputil"
)

// Deps are the router's wiring inputs. DB and Redis may be nil when the
// service runs on in-memory stores; health reporting degrades gracefully.
type Deps struct {
	Logger   *slog.Logger
	Contacts *contacthandler.Handler
	Caches   *cachehandler.Handler
	Tags     *taghandler.Handler
	DB       *sql.DB
	Redis    *platformredis.Client
}

// New builds the service router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", healthHandler(deps.DB, deps.Redis))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/owners/{ownerID}", func(r chi.Router) {
		r.Route("/contacts", func(r chi.Router) {
			r.Route("/search/cache", deps.Caches.Register)
			deps.Contacts.Register(r)
		})
		r.Route("/tags", deps.Tags.Register)
	})

	return r
}

func healthHandler(db *sql.DB, cache *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{}

		if db != nil {
			checks["postgres"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if cache != nil {
			checks["redis"] = "ok"
			if err := cache.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
