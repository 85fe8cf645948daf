package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ir-comercio/estoque-api/internal/auth"
	"github.com/ir-comercio/estoque-api/internal/estoque"
	"github.com/ir-comercio/estoque-api/internal/observability"
	"github.com/ir-comercio/estoque-api/internal/platform/httpx"
	"github.com/ir-comercio/estoque-api/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	EstoqueHandler *estoque.Handler
	SessionAuth    *auth.Validator
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	Access         *AccessCounter
	Pool           *pgxpool.Pool
	Redis          *redis.Client
}

// NewRouter builds the chi router. Everything under /api requires a
// portal session; the root banner, health check and metrics stay open.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Access:  params.Access,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{
			"service": "estoque-api",
			"status":  "ok",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, healthReport(r.Context(), params.Pool, params.Redis))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.SessionAuth != nil {
			r.Use(auth.RequireSession(params.SessionAuth))
		}
		params.EstoqueHandler.MountRoutes(r)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

func healthReport(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	database := "ok"
	if pool == nil {
		database = "unconfigured"
	} else if err := pool.Ping(ctx); err != nil {
		database = "unreachable"
	}

	cache := "ok"
	if rdb == nil {
		cache = "unconfigured"
	} else if err := rdb.Ping(ctx).Err(); err != nil {
		cache = "unreachable"
	}

	status := "ok"
	if database != "ok" {
		status = "degraded"
	}
	return map[string]any{
		"status":    status,
		"database":  database,
		"cache":     cache,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
