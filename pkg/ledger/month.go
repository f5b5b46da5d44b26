package ledger

import (
	"fmt"
	"time"
)

// Month is a calendar month key in "YYYY-MM" form. The format sorts
// lexically in chronological order, so plain string comparison is used for
// eligibility windows and month ordering throughout.
type Month string

const monthLayout = "2006-01"

// ParseMonth validates a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", &ValidationError{Field: "month", Reason: fmt.Sprintf("want YYYY-MM, got %q", s)}
	}
	// time.Parse accepts "2025-1"; normalize through formatting and require
	// the canonical form.
	if t.Format(monthLayout) != s {
		return "", &ValidationError{Field: "month", Reason: fmt.Sprintf("want YYYY-MM, got %q", s)}
	}
	return Month(s), nil
}

// CurrentMonth returns the month key for the current wall-clock time.
func CurrentMonth() Month {
	return Month(time.Now().Format(monthLayout))
}

// Prev returns the month immediately before m.
func (m Month) Prev() Month {
	t, _ := time.Parse(monthLayout, string(m))
	return Month(t.AddDate(0, -1, 0).Format(monthLayout))
}

// Next returns the month immediately after m.
func (m Month) Next() Month {
	t, _ := time.Parse(monthLayout, string(m))
	return Month(t.AddDate(0, 1, 0).Format(monthLayout))
}

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool {
	return string(m) < string(other)
}

func (m Month) String() string { return string(m) }
