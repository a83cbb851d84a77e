// Package cycle maps a date to the credit-card billing cycle that contains it.
package cycle

import "time"

const (
	DefaultCutDay    = 11
	DefaultGraceDays = 25
)

// Info describes one billing cycle relative to a reference date.
type Info struct {
	CutDate      time.Time `json:"cycle_cut_date"`
	DueDate      time.Time `json:"due_date"`
	NextCutDate  time.Time `json:"next_cycle_cut"`
	DaysUntilDue int       `json:"days_until_due"`
}

// Calculator computes billing cycles for a fixed statement cut day.
type Calculator struct {
	CutDay    int
	GraceDays int
}

// Default returns the 11th-of-month cycle with 25 grace days.
func Default() Calculator {
	return Calculator{CutDay: DefaultCutDay, GraceDays: DefaultGraceDays}
}

// For returns the cycle enclosing date.
//
// A cut day past the end of a short month falls on that month's last day,
// so CutDay=31 cuts on Feb 28 (or 29) and on Apr 30.
func (c Calculator) For(date time.Time) Info {
	date = dateOnly(date)
	cutDay := c.CutDay
	if cutDay < 1 {
		cutDay = DefaultCutDay
	}

	y, m, d := date.Date()
	cut := cutIn(y, m, cutDay)
	if d < cut.Day() {
		py, pm := prevMonth(y, m)
		cut = cutIn(py, pm, cutDay)
	}

	ny, nm := nextMonth(cut.Year(), cut.Month())
	due := cut.AddDate(0, 0, c.GraceDays)

	days := int(due.Sub(date).Hours() / 24)
	if days < 0 {
		days = 0
	}

	return Info{
		CutDate:      cut,
		DueDate:      due,
		NextCutDate:  cutIn(ny, nm, cutDay),
		DaysUntilDue: days,
	}
}

func cutIn(year int, month time.Month, cutDay int) time.Time {
	last := daysIn(year, month)
	if cutDay > last {
		cutDay = last
	}
	return time.Date(year, month, cutDay, 0, 0, 0, 0, time.UTC)
}

// daysIn returns the number of days in month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func prevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
