package session

import (
	"os"
	"strings"
)

// DevSecret is the signing secret used when JWT_SECRET is unset.
// It must never be accepted in production; see app.ValidateSecurityConfig.
const DevSecret = "dev-super-secret-jwt-key"

// Config defines the runtime configuration of the token codec.
//
// Lifetimes are literals of the form <int><s|m|h|d> ("15m", "7d").
// Unrecognised literals fall back to seven days; see ParseLifetime.
type Config struct {
	// Secret is the HMAC key used to sign and verify tokens.
	Secret string

	// Issuer is the value set in the "iss" claim.
	Issuer string

	AccessTTL  string
	RefreshTTL string
}

// DefaultConfig returns a configuration suitable for development.
func DefaultConfig() Config {
	return Config{
		Secret:     DevSecret,
		Issuer:     "chatbot",
		AccessTTL:  "7d",
		RefreshTTL: "30d",
	}
}

// LoadConfigFromEnv loads codec configuration from environment variables.
//
// Optional:
//   - JWT_SECRET
//   - JWT_ISSUER
//   - JWT_EXPIRES_IN
//   - JWT_REFRESH_EXPIRES_IN
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("JWT_SECRET"); ok {
		cfg.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_EXPIRES_IN")); v != "" {
		cfg.AccessTTL = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_REFRESH_EXPIRES_IN")); v != "" {
		cfg.RefreshTTL = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants NewCodec relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return ErrConfig
	}
	return nil
}

// UsesDevSecret reports whether the codec would sign with the built-in development secret.
func (c Config) UsesDevSecret() bool {
	return c.Secret == DevSecret
}
