package task

import (
	"fmt"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// ParseWhen parses a backend date string. Two shapes are accepted: a bare
// calendar date, read as midnight local time, and a full timestamp with or
// without a zone offset. Zoneless timestamps are read as local time, which
// is how the backend serializes them.
func ParseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	if len(s) == len(dateOnlyLayout) && strings.Count(s, "-") == 2 {
		return time.ParseInLocation(dateOnlyLayout, s, time.Local)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return t, nil
}

// ResolveDay resolves a date string to its calendar day in local time,
// dropping the time-of-day component.
func ResolveDay(s string) (time.Time, error) {
	t, err := ParseWhen(s)
	if err != nil {
		return time.Time{}, err
	}
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local), nil
}

// SameDay reports whether two instants fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
