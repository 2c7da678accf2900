package authapi

import (
	"os"
	"strconv"
	"strings"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// Config controls auth API transport behavior.
type Config struct {
	// TrustProxy honours X-Forwarded-For / X-Real-IP when resolving the client IP.
	TrustProxy   bool
	MaxBodyBytes int64
}

// LoadConfigFromEnv loads auth API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:   envBool("TRUST_PROXY", false),
		MaxBodyBytes: envInt64("MAX_BODY_BYTES", defaultMaxBodyBytes),
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
