package schedule

import (
	"fmt"
	"sort"
	"time"
)

// GridCells is the number of cells in a month view: six weeks of seven days.
const GridCells = 42

const dateLayout = "2006-01-02"

// Cell is one day of the month grid.
type Cell struct {
	Date           time.Time
	IsCurrentMonth bool
}

// BuildMonthGrid returns the 42 days shown for a month. The grid starts on
// the Sunday on or before the 1st and pads with next-month days at the end.
func BuildMonthGrid(year int, month time.Month) []Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	cells := make([]Cell, GridCells)
	for i := range cells {
		d := start.AddDate(0, 0, i)
		cells[i] = Cell{Date: d, IsCurrentMonth: d.Month() == month}
	}
	return cells
}

// MonthRange returns [first day, first day of next month) at midnight UTC.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// GridRange returns the half-open range covered by BuildMonthGrid.
func GridRange(year int, month time.Month) (time.Time, time.Time) {
	cells := BuildMonthGrid(year, month)
	return cells[0].Date, cells[GridCells-1].Date.AddDate(0, 0, 1)
}

// DateKey formats the literal calendar day of t without converting zones.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDay reads "YYYY-MM-DD" or an RFC3339 timestamp and returns the
// literal calendar day at midnight UTC. The offset of a timestamp is
// ignored so "2024-03-10T23:00:00-03:00" is March 10.
func ParseDay(s string) (time.Time, error) {
	if len(s) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	if len(s) > len(dateLayout) {
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
	}
	d, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// NormalizeDay truncates t to its literal calendar day at midnight UTC.
func NormalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GroupByDate buckets items by the DateKey of their day.
func GroupByDate[T any](items []T, dayOf func(T) time.Time) map[string][]T {
	out := make(map[string][]T)
	for _, it := range items {
		key := DateKey(dayOf(it))
		out[key] = append(out[key], it)
	}
	return out
}

// SortByStartTime orders items by their "HH:MM" start time. Zero-padded
// times sort correctly as strings.
func SortByStartTime[T any](items []T, startOf func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return startOf(items[i]) < startOf(items[j])
	})
}
