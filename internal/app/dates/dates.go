// Package dates provides day-granular helpers for report windows and
// validity checks. All comparisons strip the time of day first.
package dates

import "time"

// DayStart returns midnight at the start of t's calendar day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayEnd returns the last representable instant of t's calendar day.
func DayEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// BeforeDay reports whether a falls on an earlier calendar day than b.
func BeforeDay(a, b time.Time) bool {
	return DayStart(a).Before(DayStart(b))
}

// Range is an inclusive day-granular window. A zero bound means unbounded
// on that side.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range constrains nothing.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls within the window, widening the bounds
// to whole days.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(DayStart(r.Start)) {
		return false
	}
	if !r.End.IsZero() && t.After(DayEnd(r.End)) {
		return false
	}
	return true
}
