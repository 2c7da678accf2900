package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization used for uniqueness.
// The display form is stored untouched next to it.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
