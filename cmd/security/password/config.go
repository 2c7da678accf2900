package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinCost is the lowest work factor accepted from configuration (2^12 rounds).
	MinCost = 12

	// MaxBytes is the bcrypt input limit.
	MaxBytes = 72

	// MinLength is the shortest password any policy may allow.
	MinLength = 6
)

// Policy controls password validation.
type Policy struct {
	MinLength int
	MaxBytes  int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Cost   int
	Policy Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	return Config{
		Cost: MinCost,
		Policy: Policy{
			MinLength:      MinLength,
			MaxBytes:       MaxBytes,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - BCRYPT_COST (12..31)
// - PASSWORD_MIN_LEN (6..72)
// - PASSWORD_REJECT_VERY_WEAK (true/false)
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("BCRYPT_COST"); ok {
		n, err := atoiRange(v, MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("BCRYPT_COST: %w", err)
		}
		cfg.Cost = n
	}

	if v, ok := os.LookupEnv("PASSWORD_MIN_LEN"); ok {
		n, err := atoiRange(v, MinLength, MaxBytes)
		if err != nil {
			return Config{}, fmt.Errorf("PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	return cfg, nil
}

func atoiRange(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
