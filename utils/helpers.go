package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a random UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateIncidentNumber mints an identifier for an emergency-services
// dispatch. UUID-based so concurrent dispatches can never collide.
func GenerateIncidentNumber() string {
	return "INC-" + strings.ToUpper(uuid.New().String())
}

// StringInSlice reports whether s is present in list.
func StringInSlice(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
