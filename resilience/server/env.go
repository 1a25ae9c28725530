package server

import (
	"os"
	"strings"
)

// DefaultAddress is used when no listen address is configured.
const DefaultAddress = ":8080"

// GetenvOrDefault returns the value of the environment variable key, or
// fallback when the variable is unset or contains only whitespace.
func GetenvOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return fallback
}
