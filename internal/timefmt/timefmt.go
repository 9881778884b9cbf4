// Package timefmt converts between the clinic's display times, storage times
// and calendar dates.
//
// Calendar dates are represented as time.Time values at 00:00 UTC carrying
// the civil date in their year/month/day fields. Converting an instant into a
// date always goes through Today or DateOf with the clinic location so the
// date never shifts by a day across time zones.
package timefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidClock = errors.New("invalid time of day")

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock accepts "HH:MM" or "HH:MM:SS". Seconds are dropped.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Add returns c shifted by d, truncated to whole minutes.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// String renders the 24-hour "HH:MM" form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Storage renders the "HH:MM:SS" form used by the schedules table.
func (c Clock) Storage() string {
	return c.String() + ":00"
}

// Display renders the 12-hour "H:MM AM/PM" form.
func (c Clock) Display() string {
	h := c.Hour()
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, c.Minute(), suffix)
}

// MarshalText encodes the clock as "HH:MM".
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ToStorageTime appends ":00" to an "HH:MM" value. Values that already carry
// seconds are returned unchanged.
func ToStorageTime(display string) string {
	display = strings.TrimSpace(display)
	if strings.Count(display, ":") == 1 {
		return display + ":00"
	}
	return display
}

// ToDisplayTime converts "HH:MM" or "HH:MM:SS" into "H:MM AM/PM". Unparseable
// input is returned as is.
func ToDisplayTime(storage string) string {
	c, err := ParseClock(storage)
	if err != nil {
		return storage
	}
	return c.Display()
}

// DateKey formats the calendar fields of t as "YYYY-MM-DD".
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDateKey parses "YYYY-MM-DD" into a date value.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DateOf drops the time of day of t keeping its own calendar fields.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now as observed in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// At places a date and a clock in loc.
func At(date time.Time, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// AddDays shifts a date by n calendar days.
func AddDays(date time.Time, n int) time.Time {
	return DateOf(date).AddDate(0, 0, n)
}

// DaysBetween counts calendar days from a to b. It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// WeekdayName returns "Monday".."Sunday" for a date key, or "" when the key
// is malformed.
func WeekdayName(dateKey string) string {
	d, err := ParseDateKey(dateKey)
	if err != nil {
		return ""
	}
	return d.Weekday().String()
}

// WeekStart returns the Monday of the week containing date.
func WeekStart(date time.Time) time.Time {
	d := DateOf(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekNumber numbers weeks of the year from the weekday of January 1st.
func WeekNumber(date time.Time) int {
	d := DateOf(date)
	jan1 := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	pastDays := d.YearDay() - 1
	n := pastDays + int(jan1.Weekday()) + 1
	return (n + 6) / 7
}
