package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns a unique identifier for one automation session.
func NewSessionID() string {
	return "session-" + uuid.New().String()
}

// NewTurnID returns a unique identifier for one conversation turn record.
func NewTurnID() string {
	return "turn-" + uuid.New().String()
}

// SanitizeIdentifier makes an identifier safe for filesystem paths and
// process names. Replaces separators and whitespace with dashes.
func SanitizeIdentifier(id string) string {
	sanitized := strings.ReplaceAll(id, ":", "-")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	sanitized = strings.ReplaceAll(sanitized, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, "\\", "-")
	return sanitized
}
