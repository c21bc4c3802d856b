// Package daterange models inclusive calendar date ranges and splits long
// ranges into provider-sized windows.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the calendar date format accepted on the command line and stored in the ledger.
const Layout = "2006-01-02"

// ErrInvalidRange is returned for malformed dates or ranges whose end precedes their start.
var ErrInvalidRange = errors.New("invalid date range")

// Range is an inclusive [Start, End] pair of calendar dates at UTC midnight.
type Range struct {
	Start time.Time
	End   time.Time
}

// New builds a Range from two instants, truncating both to their UTC calendar day.
func New(start, end time.Time) (Range, error) {
	r := Range{Start: day(start), End: day(end)}
	if r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, r.End.Format(Layout), r.Start.Format(Layout))
	}
	return r, nil
}

// Parse reads a range from two YYYY-MM-DD strings.
func Parse(start, end string) (Range, error) {
	s, err := time.Parse(Layout, start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start date %q: expected YYYY-MM-DD", ErrInvalidRange, start)
	}
	e, err := time.Parse(Layout, end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end date %q: expected YYYY-MM-DD", ErrInvalidRange, end)
	}
	return New(s, e)
}

// Days is the number of calendar days covered, both ends included.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Months is the whole-month span of the range: the smallest m >= 1 such that
// Start advanced by m calendar months lies after End. A Start on the last day
// of its month advances to the last day of the target month.
func (r Range) Months() int {
	m := 1
	for !stepMonths(r.Start, m).After(r.End) {
		m++
	}
	return m
}

// Contains reports whether t falls on a day inside the range.
func (r Range) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return r.Start.Format(Layout) + ".." + r.End.Format(Layout)
}

// Subdivide splits r into consecutive, gap-free sub-ranges spanning at most
// maxMonths months each. A range already within the limit is returned as is.
func Subdivide(r Range, maxMonths int) ([]Range, error) {
	if maxMonths <= 0 {
		return nil, fmt.Errorf("max months must be positive, got %d", maxMonths)
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	if r.Months() <= maxMonths {
		return []Range{r}, nil
	}

	// Every boundary is measured from r.Start so month-end clamping in one
	// segment does not shift the next.
	var parts []Range
	for k := 0; ; k++ {
		s := stepMonths(r.Start, k*maxMonths)
		if s.After(r.End) {
			break
		}
		end := stepMonths(r.Start, (k+1)*maxMonths).AddDate(0, 0, -1)
		if end.After(r.End) {
			end = r.End
		}
		parts = append(parts, Range{Start: s, End: end})
	}
	return parts, nil
}

// AddMonths advances t by n calendar months, clamping the day to the last day
// of the target month instead of overflowing into the next one.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// stepMonths is AddMonths, except that the last day of a month maps to the
// last day of the target month.
func stepMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	if t.Day() == daysIn(first) {
		target := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
		return target.AddDate(0, 1, -1)
	}
	return AddMonths(t, n)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
