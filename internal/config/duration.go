package config

import "time"

// DurationOr parses a duration string from the config file, falling back
// when the field is empty or malformed.
func DurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
