package grading

import "strings"

// equalAnswer compares a submitted value against a key entry, case-insensitive
// and ignoring leading/trailing whitespace.
func equalAnswer(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}
