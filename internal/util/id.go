package util

import "github.com/google/uuid"

// NewID returns a random UUID string. All identifiers in the API
// (sessions, projects, connections, commands) share this format.
func NewID() string {
	return uuid.NewString()
}
