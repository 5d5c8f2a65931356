// Package timewindow resolves the calendar date ranges dashboard queries run over.
//
// All values are calendar dates: times are truncated to midnight UTC and both
// bounds of a Window are inclusive.
package timewindow

import (
	"time"

	"agri-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// Period is a calendar length. Years and months move by calendar month and
// clamp to the last day of a shorter month; days are added after that.
type Period struct {
	Years  int
	Months int
	Days   int
}

var (
	ThirtyDays = Period{Days: 30}
	Month      = Period{Months: 1}
	Quarter    = Period{Months: 3}
	Year       = Period{Years: 1}
)

// Months returns a period of n calendar months
func Months(n int) Period {
	return Period{Months: n}
}

// AddMonths moves t by n calendar months keeping its day of month. When the
// target month is shorter the result is that month's last day, so Mar 31 minus
// one month is Feb 29 in a leap year rather than Mar 2.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(first.Year(), first.Month(), d, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(first time.Time) int {
	return first.AddDate(0, 1, -1).Day()
}

// Before returns t moved back by p
func (p Period) Before(t time.Time) time.Time {
	return AddMonths(t, -(p.Years*12 + p.Months)).AddDate(0, 0, -p.Days)
}

// Window is an inclusive calendar date range
type Window struct {
	Start  time.Time
	End    time.Time
	Period Period
}

// Date truncates t to its calendar date at midnight UTC
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Trailing returns the window of length p ending on ref's date
func Trailing(ref time.Time, p Period) Window {
	end := Date(ref)
	return Window{
		Start:  p.Before(end),
		End:    end,
		Period: p,
	}
}

// Previous returns the window of the same period immediately before w.
// It ends the day before w starts so the two never overlap.
func (w Window) Previous() Window {
	return Window{
		Start:  w.Period.Before(w.Start),
		End:    w.Start.AddDate(0, 0, -1),
		Period: w.Period,
	}
}

// YearBounds returns January 1st through December 31st of year
func YearBounds(year int) Window {
	return Window{
		Start:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		Period: Year,
	}
}

// Resolve turns optional explicit bounds into a window.
//
// Both bounds given are used verbatim. A missing end defaults to ref's date and
// a missing start defaults to end minus def. A start after its end is rejected
// with a RangeError before any query can run.
func Resolve(ref time.Time, start, end *time.Time, def Period) (Window, error) {
	w := Window{Period: def}

	if end != nil {
		w.End = Date(*end)
	} else {
		w.End = Date(ref)
	}

	if start != nil {
		w.Start = Date(*start)
	} else {
		w.Start = def.Before(w.End)
	}

	if w.Start.After(w.End) {
		return Window{}, &models.RangeError{Start: w.Start, End: w.End}
	}

	return w, nil
}

// ResolveBoth uses the explicit bounds only when both are given; otherwise it
// returns the trailing window of length def ending on ref. A start after its
// end is rejected with a RangeError.
func ResolveBoth(ref time.Time, start, end *time.Time, def Period) (Window, error) {
	if start == nil || end == nil {
		return Trailing(ref, def), nil
	}
	return Resolve(ref, start, end, def)
}

// String formats the window as start..end
func (w Window) String() string {
	return w.Start.Format(dateLayout) + ".." + w.End.Format(dateLayout)
}
