package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Usernames are email addresses; only trim + lower-case is applied.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MaxUsernameLength bounds stored usernames (RFC 5321 path limit).
const MaxUsernameLength = 320

// ValidUsername reports whether a normalized username can be stored.
func ValidUsername(s string) bool {
	return s != "" && len(s) <= MaxUsernameLength
}
