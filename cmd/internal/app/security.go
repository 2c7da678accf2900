package app

import (
	"errors"
	"fmt"

	"chatbot/cmd/internal/ratelimit"
)

// MinProductionSecretBytes is the shortest JWT secret accepted in production.
const MinProductionSecretBytes = 32

// ValidateSecurityConfig enforces the startup security policy.
// Fail-fast: a misconfigured production deployment must not start.
func ValidateSecurityConfig(cfg Config) error {
	if err := cfg.JWT.Validate(); err != nil {
		return err
	}

	if cfg.IsProduction() {
		if cfg.JWT.UsesDevSecret() {
			return errors.New("security policy: JWT_SECRET must be set in production")
		}
		// Measured in bytes: the secret is used as a raw HMAC key.
		if len(cfg.JWT.Secret) < MinProductionSecretBytes {
			return fmt.Errorf("security policy: JWT_SECRET is too short (min %d bytes)", MinProductionSecretBytes)
		}
	}

	switch cfg.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("config: RATE_LIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", cfg.RateLimitBackend)
	}

	if cfg.RateLimitWindow <= 0 || cfg.RateLimitMax <= 0 {
		return fmt.Errorf("config: invalid rate limit %d per %s (defaults are %d per %s)",
			cfg.RateLimitMax, cfg.RateLimitWindow, ratelimit.DefaultMax, ratelimit.DefaultWindow)
	}

	return nil
}
