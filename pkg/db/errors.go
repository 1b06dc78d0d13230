package db

import "strings"

// IsUniqueViolation reports whether err is a Postgres unique violation. With a
// constraintName it matches that specific constraint, which is how outbox
// dedupe distinguishes its partial index from unrelated collisions.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
