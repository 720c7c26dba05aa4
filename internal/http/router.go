package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/solprobe/internal/auth"
	"github.com/example/solprobe/internal/handlers"
	"github.com/example/solprobe/internal/metrics"
	"github.com/example/solprobe/internal/rate"
	"github.com/example/solprobe/internal/types"
	"github.com/example/solprobe/pkg/jsonutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps collects what the router serves. Nil handlers leave their routes
// unmounted; a nil or empty Keys store disables API key auth.
type Deps struct {
	Balance  *handlers.BalanceHandler
	Transfer *handlers.TransferHandler
	Scenario *handlers.ScenarioHandler
	Runs     *handlers.RunsHandler
	Admin    *handlers.AdminHandler

	Limiter *rate.LimiterMap
	Keys    auth.APIKeyStore
	Checks  map[string]HealthCheck
	Metrics *metrics.Metrics
	// Gatherer backs /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type keyToggle interface{ Enabled() bool }

func authEnabled(s auth.APIKeyStore) bool {
	if s == nil {
		return false
	}
	if t, ok := s.(keyToggle); ok {
		return t.Enabled()
	}
	return true
}

// NewRouter wires routes and middlewares.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(d.Metrics.Middleware)
	r.Use(CORS)
	if d.Limiter != nil {
		r.Use(RateLimit(d.Limiter))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		failed := map[string]string{}
		for name, check := range d.Checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			jsonutil.JSON(w, http.StatusInternalServerError, map[string]any{"status": "unhealthy", "failed": failed, "time": types.NowRFC3339()})
			return
		}
		jsonutil.JSON(w, http.StatusOK, map[string]any{"status": "ok", "time": types.NowRFC3339()})
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		if authEnabled(d.Keys) {
			api.Use(Auth(d.Keys))
		}
		if d.Balance != nil {
			api.Post("/get-balance", d.Balance.ServeHTTP)
		}
		if d.Transfer != nil {
			api.Post("/fund", d.Transfer.Fund)
			api.Post("/airdrop", d.Transfer.Airdrop)
		}
		if d.Scenario != nil {
			api.Post("/scenarios/dup-acct", d.Scenario.RunDupAcct)
		}
		if d.Runs != nil {
			api.Get("/runs", d.Runs.List)
			api.Get("/runs/{id}", d.Runs.Get)
		}
	})

	if d.Admin != nil && d.Admin.AdminToken != "" {
		r.Post("/admin/config-marinade", d.Admin.ServeHTTP)
	}

	return r
}
