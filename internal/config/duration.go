package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration parses an optional Go duration string. An empty, omitted or
// "0s" field falls back to def; negatives are rejected. Every duration in
// the config is an interval or timeout, so "no value" and "zero" both mean
// "use the default" (pass def 0 for fields where zero disables).
func ParseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
