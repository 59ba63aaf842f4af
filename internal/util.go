// Package internal provides internal utility functionality for the toolscout application.
package internal

import (
	"crypto/subtle"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateAPIKey checks if an operator-supplied admin API key is usable.
// It doesn't impose many conditions to allow flexibility.
// It is up to the operator to follow best security practices when assigning keys.
func ValidateAPIKey(key string) error {
	if len(key) < 8 {
		return fmt.Errorf("api key should be at least 8 characters in length")
	}
	if hasWhitespace(key) {
		return fmt.Errorf("api key should not contain whitespace characters")
	}
	return nil
}

// SecureCompareKeys compares two keys in constant time so the admin
// boundary does not leak key prefixes through timing.
func SecureCompareKeys(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewCorrelationID returns a short id that links a client-visible
// error to the full detail in the server log.
func NewCorrelationID() string {
	return uuid.NewString()[:8]
}

// TruncateString cuts s to at most max bytes without splitting a rune.
// Used when recording arguments and outputs so one call cannot bloat
// the audit table.
func TruncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// hasWhitespace checks if the key contains any whitespace characters.
func hasWhitespace(key string) bool {
	for _, r := range key {
		if unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
