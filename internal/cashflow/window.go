package cashflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/cashflow/internal/clock"
)

// DateLayout is the calendar-date format used in periods and query params.
const DateLayout = "2006-01-02"

// ErrInvalidWindow is returned when a window starts after it ends.
var ErrInvalidWindow = errors.New("invalid date window")

// Window is an inclusive calendar-date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Period is the JSON view of a Window.
type Period struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
	Days  int    `json:"days"`
}

// DefaultWindow fills a zero start with January 1 of the current year and a
// zero end with today.
func DefaultWindow(c clock.Clock, start, end time.Time) (Window, error) {
	today := clock.Today(c)
	if start.IsZero() {
		start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = today
	}
	w := Window{Start: clock.Date(start), End: clock.Date(end)}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("%w: %s is after %s", ErrInvalidWindow,
			w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return w, nil
}

// Contains reports whether t falls on a day inside the window.
func (w Window) Contains(t time.Time) bool {
	d := clock.Date(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days is the number of calendar days in the window, both ends included.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Period renders the window for reports.
func (w Window) Period() Period {
	return Period{Start: w.Start.Format(DateLayout), End: w.End.Format(DateLayout), Days: w.Days()}
}

// Months splits the window at calendar-month boundaries. The first and last
// months are clipped to the window.
func (w Window) Months() []Window {
	var out []Window
	cur := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(w.End) {
		next := cur.AddDate(0, 1, 0)
		m := Window{Start: cur, End: next.AddDate(0, 0, -1)}
		if m.Start.Before(w.Start) {
			m.Start = w.Start
		}
		if m.End.After(w.End) {
			m.End = w.End
		}
		out = append(out, m)
		cur = next
	}
	return out
}
