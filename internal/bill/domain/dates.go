package domain

import (
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// ParseDate accepts RFC3339 timestamps or bare dates (midnight UTC).
func ParseDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return parsed.UTC(), true
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}
