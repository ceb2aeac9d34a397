package utils

import (
	"fmt"
	"time"
)

// ParseTime accepts RFC3339 (with or without fractional seconds) or a
// local "2006-01-02 15:04:05", "2006-01-02T15:04:05" or date-only value,
// which is read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	layouts := []string{
		time.DateTime,
		"2006-01-02T15:04:05",
		time.DateOnly,
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse time: %v", s)
}
