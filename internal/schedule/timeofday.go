// Package schedule holds the pure scheduling rules of the studio calendar:
// wall-clock arithmetic, overlap detection, the appointment lifecycle and
// the month grid. Nothing here touches storage.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

// ErrInvalidTimeFormat is returned for start times that are not "HH:MM".
var ErrInvalidTimeFormat = errors.New("time must be in HH:MM format")

var timeOfDayRegex = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):([0-5][0-9])$`)

// Interval is a half-open range of minutes since midnight: [Start, End).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether the two intervals share any minute. Touching
// boundaries do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i, other)
}

// Overlaps is the half-open overlap test.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// TimeToMinutes converts "HH:MM" (single-digit hours allowed) to minutes
// since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	m := timeOfDayRegex.FindStringSubmatch(hhmm)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, hhmm)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

// MinutesToTime formats minutes since midnight as zero-padded "HH:MM".
// Hours wrap modulo 24, so 1500 renders as "01:00".
func MinutesToTime(minutes int) string {
	hours := (minutes / 60) % 24
	if hours < 0 {
		hours += 24
	}
	mins := minutes % 60
	if mins < 0 {
		mins += 60
	}
	return fmt.Sprintf("%02d:%02d", hours, mins)
}

// DurationMinutes converts an hour estimate to whole minutes, rounding
// half up.
func DurationMinutes(estimatedHours float64) int {
	return int(math.Round(estimatedHours * 60))
}

// IntervalEnd returns the end minute of an appointment starting at
// startTime and lasting estimatedHours.
func IntervalEnd(startTime string, estimatedHours float64) (int, error) {
	start, err := TimeToMinutes(startTime)
	if err != nil {
		return 0, err
	}
	return start + DurationMinutes(estimatedHours), nil
}

// SlotInterval returns the half-open interval an appointment occupies.
func SlotInterval(startTime string, estimatedHours float64) (Interval, error) {
	start, err := TimeToMinutes(startTime)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + DurationMinutes(estimatedHours)}, nil
}

// NormalizeTime rewrites a valid start time in zero-padded form, so "9:30"
// is stored as "09:30" and sorts correctly.
func NormalizeTime(hhmm string) (string, error) {
	minutes, err := TimeToMinutes(hhmm)
	if err != nil {
		return "", err
	}
	return MinutesToTime(minutes), nil
}
