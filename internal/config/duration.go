package config

import (
	"fmt"
	"strings"
	"time"
)

// durationDefaults lists the config fields that fall back to a non-zero
// duration when omitted. Fields not listed here default to 0, which the
// consuming service interprets (usually as "use the built-in default").
var durationDefaults = map[string]time.Duration{
	"telegram.poll_timeout": 10 * time.Second,
	"engine.token_ttl":      time.Hour,
}

// ParseDurationField parses an optional Go duration string. Omitted or
// zero values fall back to the field's registered default; negative
// durations are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return durationDefaults[path], nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return durationDefaults[path], nil
	}
	return d, nil
}
