package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	// Count characters (runes), not bytes, to be user-friendly.
	minLen := c.Policy.MinLength
	if minLen < MinLength {
		minLen = MinLength
	}
	if utf8.RuneCountInString(password) < minLen {
		return ErrPasswordTooShort
	}

	maxBytes := c.Policy.MaxBytes
	if maxBytes <= 0 || maxBytes > MaxBytes {
		maxBytes = MaxBytes
	}
	if len(password) > maxBytes {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak {
		if looksVeryWeak(password) {
			return ErrWeakPassword
		}
	}

	return nil
}

// looksVeryWeak rejects a handful of trivially guessable inputs.
// It is not an entropy estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	runes := []rune(s)
	sameChar, digitsOnly := true, true
	for _, r := range runes {
		if r != runes[0] {
			sameChar = false
		}
		if !unicode.IsDigit(r) {
			digitsOnly = false
		}
	}
	if sameChar || (digitsOnly && len(runes) < 8) {
		return true
	}

	_, common := commonPasswords[strings.ToLower(s)]
	return common
}

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"qwerty":      {},
	"qwerty123":   {},
	"abc123":      {},
	"letmein":     {},
	"123456789":   {},
	"iloveyou":    {},
}
