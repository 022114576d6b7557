package billing

import (
	"fmt"
	"strings"
	"time"
)

// ParseRange parses textual from/to bounds for bill and session filters.
// Each accepts RFC 3339 or a bare date; a bare "to" date includes that
// whole day. Empty bounds stay zero.
func ParseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, _, err := parseInstant(fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %w", ErrInvalidInput, err)
	}
	to, dateOnly, err := parseInstant(toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %w", ErrInvalidInput, err)
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidInput)
	}
	return from, to, nil
}

func parseInstant(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", raw)
	}
	return t, true, nil
}
