package session

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultLifetime applies to any literal ParseLifetime does not recognise.
const DefaultLifetime = 7 * 24 * time.Hour

var lifetimeRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseLifetime converts a lifetime literal such as "30s", "15m", "12h" or "7d"
// into a duration. Unknown units, empty input and non-positive values silently
// yield DefaultLifetime.
func ParseLifetime(literal string) time.Duration {
	m := lifetimeRe.FindStringSubmatch(strings.TrimSpace(literal))
	if m == nil {
		return DefaultLifetime
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return DefaultLifetime
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	// Guard against overflow for absurd literals.
	if n > int64((1<<63-1)/unit) {
		return DefaultLifetime
	}
	return time.Duration(n) * unit
}

// LifetimeSeconds is ParseLifetime expressed in whole seconds.
func LifetimeSeconds(literal string) int64 {
	return int64(ParseLifetime(literal) / time.Second)
}
