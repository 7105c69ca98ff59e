package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional Go duration string from the config.
// Empty means zero; negative values are rejected.
func ParseDurationField(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: bad duration %q: %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for the
// empty case.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(field, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
