package app

import (
	"encoding/json"
	"net/http"
	"time"

	authapi "chatbot/cmd/internal/auth/api"
	"chatbot/cmd/internal/ratelimit"

	"github.com/go-chi/chi/v5"
)

// Version is stamped at build time with -ldflags "-X chatbot/cmd/internal/app.Version=...".
var Version = "dev"

func newRouter(a *App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		WithRequestID,
		func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log, a.metrics) },
		WithSecurityHeaders,
		func(next http.Handler) http.Handler { return WithCORS(next, a.cfg, a.log) },
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"version":   Version,
		})
	})

	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.Middleware(a.limiter, authapi.ClientKey(a.cfg.Auth.TrustProxy), a.log))
		r.Mount("/", a.auth.Routes())
	})

	return r
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && !a.dbEnabled {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}

	if a.dbEnabled && a.dbPool != nil {
		if err := PingDB(r.Context(), a.dbPool, 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			a.log.Info("readyz.db.not_ready", "err", err)
			return
		}
	}

	// A fail-open limiter keeps serving without Redis, so only fail-closed
	// deployments report not ready.
	if a.redis != nil && !a.cfg.RateLimitFailOpen {
		if err := PingRedis(r.Context(), a.redis, 2*time.Second); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			a.log.Info("readyz.redis.not_ready", "err", err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
