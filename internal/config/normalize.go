package config

import (
	"regexp"
	"strings"
)

const DefaultThreadID = "default"

var (
	validIDRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)
	invalidChars = regexp.MustCompile(`[^a-z0-9_.-]+`)
	edgeDashes   = regexp.MustCompile(`^[-.]+|[-.]+$`)
)

// NormalizeThreadID turns a user-supplied name into a checkpoint key:
// lowercase, at most 64 chars of [a-z0-9_.-], runs of other characters
// collapsed to "-", no leading or trailing separators. Empty becomes
// DefaultThreadID.
func NormalizeThreadID(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return DefaultThreadID
	}
	if validIDRe.MatchString(lower) {
		return lower
	}

	result := invalidChars.ReplaceAllString(lower, "-")
	result = edgeDashes.ReplaceAllString(result, "")
	if len(result) > 64 {
		result = edgeDashes.ReplaceAllString(result[:64], "")
	}
	if result == "" {
		return DefaultThreadID
	}
	return result
}
