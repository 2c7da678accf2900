package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	DefaultWindow = 15 * time.Minute
	DefaultMax    = 100
)

// Config describes one fixed-window policy.
type Config struct {
	Window time.Duration
	Max    int64
	// FailOpen admits requests when the store cannot be reached.
	FailOpen bool
}

// DefaultConfig returns 100 requests per 15 minutes, failing open.
func DefaultConfig() Config {
	return Config{Window: DefaultWindow, Max: DefaultMax, FailOpen: true}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	// RetryAfter is set on rejections; whole seconds, at least one.
	RetryAfter time.Duration
	// Degraded reports that the store failed and the request was admitted anyway.
	Degraded bool
}

// Limiter applies a Config to a Store.
type Limiter struct {
	store   Store
	cfg     Config
	backend string

	log     *slog.Logger
	now     func() time.Time
	warnLog *rate.Limiter

	decisions *prometheus.CounterVec
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRegisterer registers the decision counter with reg.
// A counter already registered under the same name is reused.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Limiter) {
		if reg == nil {
			return
		}
		if err := reg.Register(l.decisions); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					l.decisions = existing
				}
			}
		}
	}
}

// New builds a Limiter. Non-positive Window or Max fall back to the defaults.
func New(store Store, cfg Config, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("ratelimit: nil store")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}

	l := &Limiter{
		store:   store,
		cfg:     cfg,
		backend: backendName(store),
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		// One store warning every 10s, bursting to 3.
		warnLog: rate.NewLimiter(rate.Every(10*time.Second), 3),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatbot",
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Admission decisions by backend and result.",
			},
			[]string{"backend", "result"},
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Config returns the effective policy.
func (l *Limiter) Config() Config { return l.cfg }

// Allow counts one request for key and decides whether it is admitted.
// The only error is ErrUnavailable, returned when the store failed and the
// limiter fails closed.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()

	c, err := l.store.Increment(ctx, key, l.cfg.Window, now)
	if err != nil {
		_, resetAt := windowBounds(l.cfg.Window, now)
		if l.warnLog.Allow() {
			l.log.Warn("ratelimit.store.fail",
				"backend", l.backend,
				"fail_open", l.cfg.FailOpen,
				"err", err,
			)
		}
		if !l.cfg.FailOpen {
			l.observe("unavailable")
			return Decision{Limit: l.cfg.Max, ResetAt: resetAt}, ErrUnavailable
		}
		l.observe("degraded")
		return Decision{
			Allowed:   true,
			Limit:     l.cfg.Max,
			Remaining: l.cfg.Max,
			ResetAt:   resetAt,
			Degraded:  true,
		}, nil
	}

	d := Decision{
		Allowed:   c.Count <= l.cfg.Max,
		Limit:     l.cfg.Max,
		Remaining: max(l.cfg.Max-c.Count, 0),
		ResetAt:   c.ResetAt,
	}
	if !d.Allowed {
		d.RetryAfter = retryAfter(c.ResetAt, now)
		l.observe("rejected")
		return d, nil
	}
	l.observe("allowed")
	return d, nil
}

func (l *Limiter) observe(result string) {
	l.decisions.WithLabelValues(l.backend, result).Inc()
}

// retryAfter rounds the time left in the window up to whole seconds.
func retryAfter(resetAt, now time.Time) time.Duration {
	left := resetAt.Sub(now)
	secs := (left + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}

func backendName(s Store) string {
	switch s.(type) {
	case *MemoryStore:
		return "memory"
	case *RedisStore:
		return "redis"
	default:
		return "custom"
	}
}
