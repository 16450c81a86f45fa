package calendar

import (
	"fmt"
	"time"
)

// Clock is a local time of day in seconds since midnight.
type Clock int

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
}

// ClockOf returns the time of day of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (c Clock) Hour() int   { return int(c) / 3600 }
func (c Clock) Minute() int { return int(c) % 3600 / 60 }

// On returns the instant at this time of day on the date of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), int(c)%60, 0, loc)
}

func (c Clock) String() string {
	if int(c)%60 != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), int(c)%60)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Distance returns the absolute difference between two times of day, ignoring wrap-around.
func Distance(a, b Clock) time.Duration {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return time.Duration(d) * time.Second
}
