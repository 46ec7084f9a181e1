package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var maxAgePhrase = regexp.MustCompile(`^(\d+)\s*([a-z]+)$`)

var maxAgeUnits = map[string]time.Duration{
	"sec":    time.Second,
	"second": time.Second,
	"min":    time.Minute,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    day,
	"week":   7 * day,
	"month":  30 * day,
	"year":   365 * day,
}

// ParseMaxAge accepts a Go duration ("168h") or an "<n> <unit>" phrase
// ("7 days", "12 hours"). The result must be positive.
func ParseMaxAge(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("max age is empty")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("max age %q must be positive", raw)
		}
		return d, nil
	}

	m := maxAgePhrase.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("unrecognized max age %q", raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("max age %q: %w", raw, err)
	}
	unit, ok := maxAgeUnits[strings.TrimSuffix(m[2], "s")]
	if !ok {
		return 0, fmt.Errorf("unknown max age unit %q", m[2])
	}
	if n <= 0 {
		return 0, fmt.Errorf("max age %q must be positive", raw)
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("max age %q is too large", raw)
	}
	return time.Duration(n) * unit, nil
}
