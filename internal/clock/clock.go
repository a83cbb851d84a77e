// Package clock lets the engine ask for "today" without calling time.Now
// directly, so date windows and cycle lookups are deterministic in tests.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real returns the system time.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Fixed always returns T.
type Fixed struct {
	T time.Time
}

// Now returns the fixed time.
func (f Fixed) Now() time.Time { return f.T }

// Today truncates the clock's current time to a UTC calendar date.
func Today(c Clock) time.Time {
	return Date(c.Now())
}

// Date drops the time-of-day and location from t.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
