// Package app wires the chatbot server runtime: config, logging, storage,
// request admission and the HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chatbot/cmd/identity"
	"chatbot/cmd/internal/auth/account"
	authapi "chatbot/cmd/internal/auth/api"
	"chatbot/cmd/internal/auth/session"
	"chatbot/cmd/internal/ratelimit"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the chatbot server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool
	redis     *redis.Client

	metrics *Metrics
	limiter *ratelimit.Limiter
	janitor *ratelimit.MemoryStore

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.JWT.UsesDevSecret() {
		log.Warn("security.jwt.dev_secret", "env", cfg.Env)
	}

	ctx := context.Background()

	st, users, dbPool, dbEnabled, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   NewMetrics(),
	}

	if err := a.wire(ctx, users); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, users identity.Store) error {
	codec, err := session.NewCodec(a.cfg.JWT)
	if err != nil {
		return err
	}

	accounts, err := account.NewService(users, codec, a.cfg.Password, account.WithLogger(a.log))
	if err != nil {
		return err
	}

	a.auth, err = authapi.NewHandler(a.log, accounts, codec, a.cfg.Auth)
	if err != nil {
		return err
	}

	var rlStore ratelimit.Store
	switch a.cfg.RateLimitBackend {
	case BackendRedis:
		client, err := NewRedisClient(ctx, a.cfg, a.log)
		if err != nil {
			return err
		}
		a.redis = client
		rs, err := ratelimit.NewRedisStore(client, ratelimit.DefaultRedisPrefix)
		if err != nil {
			return err
		}
		rlStore = rs
		a.log.Info("ratelimit.backend.redis")
	default:
		ms := ratelimit.NewMemoryStore()
		a.janitor = ms
		rlStore = ms
		a.log.Info("ratelimit.backend.memory")
	}

	a.limiter, err = ratelimit.New(rlStore, a.cfg.RateLimit(),
		ratelimit.WithLogger(a.log),
		ratelimit.WithRegisterer(a.metrics.Registry),
	)
	return err
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return newRouter(a)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	if a.janitor != nil {
		go a.janitor.RunJanitor(ctx, janitorInterval(a.cfg.RateLimitWindow))
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"db_enabled", a.dbEnabled,
		"ratelimit_backend", a.cfg.RateLimitBackend,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	return errors.Join(errs...)
}

func janitorInterval(window time.Duration) time.Duration {
	switch {
	case window <= 0:
		return time.Minute
	case window < 10*time.Second:
		return 10 * time.Second
	case window > 5*time.Minute:
		return 5 * time.Minute
	default:
		return window
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between the Postgres-backed identity store and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Warn("db.disabled.production", "hint", "accounts are lost on restart")
		}
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, identity.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model:
	// - app owns pool lifecycle
	// - identity.PostgresStore never closes the pool
	users, err := identity.NewPostgresStore(pool) // default schema "chatbot"
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	return dbStore{pool: pool}, users, pool, true, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
