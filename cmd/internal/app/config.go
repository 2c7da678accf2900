package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	authapi "chatbot/cmd/internal/auth/api"
	"chatbot/cmd/internal/auth/session"
	"chatbot/cmd/internal/ratelimit"
	"chatbot/cmd/security/password"

	"github.com/joho/godotenv"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:8080",
}

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Empty selects the in-memory credential store.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	RedisURL string

	RateLimitWindow   time.Duration
	RateLimitMax      int64
	RateLimitBackend  string
	RateLimitFailOpen bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	JWT      session.Config
	Auth     authapi.Config
	Password password.Config
}

// IsProduction reports whether the runtime is configured for production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// RateLimit returns the admission policy.
func (c Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Window:   c.RateLimitWindow,
		Max:      c.RateLimitMax,
		FailOpen: c.RateLimitFailOpen,
	}
}

// LoadConfig loads Config from environment variables with defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	jwtCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return Config{}, err
	}

	env := EnvString("APP_ENV", "")
	if env == "" {
		env = EnvString("NODE_ENV", "development")
	}

	return Config{
		Env:      strings.ToLower(env),
		HTTPAddr: EnvString("HTTP_ADDR", "0.0.0.0:3000"),
		LogLevel: EnvString("LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("READINESS_REQUIRE_DB", false),

		RedisURL: EnvString("REDIS_URL", ""),

		RateLimitWindow:   time.Duration(EnvInt64("RATE_LIMIT_WINDOW_MS", 900000)) * time.Millisecond,
		RateLimitMax:      EnvInt64("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitBackend:  strings.ToLower(EnvString("RATE_LIMIT_BACKEND", BackendMemory)),
		RateLimitFailOpen: EnvBool("RATE_LIMIT_FAIL_OPEN", true),

		CORSAllowedOrigins:   EnvList("ALLOWED_ORIGINS", defaultAllowedOrigins),
		CORSAllowCredentials: EnvBool("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("CORS_MAX_AGE_SECONDS", 600),

		JWT:      jwtCfg,
		Auth:     authapi.LoadConfigFromEnv(),
		Password: pwCfg,
	}, nil
}
