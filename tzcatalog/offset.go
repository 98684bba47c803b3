package tzcatalog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrBadOffset is returned when an offset string is not of the form
// "GMT" or "GMT±HH[:MM]".
var ErrBadOffset = errors.New("malformed offset")

var (
	offsetPattern     = regexp.MustCompile(`^GMT([+-])(\d{1,2}):?(\d{2})?$`)
	longOffsetPattern = regexp.MustCompile(`^GMT([+-]\d{2}:\d{2})?$`)
)

// FormatOffsetMinutes formats an offset in minutes east of UTC as
// "GMT±HH:MM". A zero offset is plain "GMT".
func FormatOffsetMinutes(minutes int) string {
	if minutes == 0 {
		return "GMT"
	}

	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}

	return fmt.Sprintf("GMT%s%02d:%02d", sign, minutes/60, minutes%60)
}

// ParseOffsetMinutes parses "GMT" or "GMT±HH[:MM]" into minutes east of UTC.
func ParseOffsetMinutes(s string) (int, error) {
	if s == "GMT" {
		return 0, nil
	}

	m := offsetPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrBadOffset, s)
	}

	hours, _ := strconv.Atoi(m[2])
	minutes := 0
	if m[3] != "" {
		minutes, _ = strconv.Atoi(m[3])
	}
	if minutes >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrBadOffset, s)
	}

	total := hours*60 + minutes
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}

// ParseOffsetHours returns the offset in fractional hours. Unparseable
// input yields 0.
func ParseOffsetHours(s string) float64 {
	minutes, err := ParseOffsetMinutes(s)
	if err != nil {
		return 0
	}
	return float64(minutes) / 60
}

// OffsetFormatter renders the offset of a location at an instant.
type OffsetFormatter func(t time.Time, loc *time.Location) string

// LongOffset renders the offset the way a "long offset" time zone name
// looks: "GMT" or "GMT±HH:MM".
func LongOffset(t time.Time, loc *time.Location) string {
	s := "GMT" + t.In(loc).Format("-07:00")
	if s == "GMT+00:00" {
		return "GMT"
	}
	return s
}

// ManualOffsetMinutes derives the offset by reading the wall clock of loc
// at t as if it were UTC and subtracting the real instant.
func ManualOffsetMinutes(t time.Time, loc *time.Location) int {
	t = t.Truncate(time.Second)
	w := t.In(loc)
	wall := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, time.UTC)
	return int(wall.Sub(t).Round(time.Minute) / time.Minute)
}

func isLongOffset(s string) bool {
	return longOffsetPattern.MatchString(s)
}
