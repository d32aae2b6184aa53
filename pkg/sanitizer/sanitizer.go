// Package sanitizer normalizes free-form request fields before validation so
// equivalent inputs compare equal and stray whitespace never reaches storage.
package sanitizer

import "strings"

// TrimAndNormalize trims surrounding whitespace and collapses internal runs
// of whitespace to single spaces.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTitle normalizes a session title.
func NormalizeTitle(s string) string {
	return TrimAndNormalize(s)
}

// NormalizeEmail lowercases and trims an email address. Validation happens
// elsewhere; this only canonicalizes.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
