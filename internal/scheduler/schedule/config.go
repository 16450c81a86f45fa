// Package schedule decides whether an algorithm is due to run and when it runs next.
// Everything here is a pure function of the configuration, the last run and the current time.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/calendar"
)

// DefaultWindowInterval applies to time_windows schedules that leave the interval empty.
const DefaultWindowInterval = "5min"

var (
	ErrUnknownInterval = errors.New("unknown execution interval")
	ErrUnknownType     = errors.New("unknown scheduling type")
	ErrNoWindows       = errors.New("time_windows schedule has no windows")
	ErrNoTimes         = errors.New("single_time schedule has no execution times")
	ErrNotContinuous   = errors.New("continuous schedule requires run_continuously")
)

var intervals = map[string]time.Duration{
	"1min":   time.Minute,
	"5min":   5 * time.Minute,
	"15min":  15 * time.Minute,
	"hourly": time.Hour,
	"daily":  24 * time.Hour,
}

// IntervalDuration maps an interval name to its period.
func IntervalDuration(name string) (time.Duration, error) {
	d, ok := intervals[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownInterval, name)
	}
	return d, nil
}

// Window is an inclusive local time-of-day range.
type Window struct {
	Start calendar.Clock
	End   calendar.Clock
}

// Contains reports start <= t <= end.
func (w Window) Contains(t calendar.Clock) bool {
	return w.Start <= t && t <= w.End
}

// InAnyWindow is the disjunction of Contains over ws.
func InAnyWindow(ws []Window, t calendar.Clock) bool {
	for _, w := range ws {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// Config is the parsed scheduling configuration of one algorithm.
type Config struct {
	Type            entity.SchedulingType
	Interval        string
	Windows         []Window
	Times           []calendar.Clock
	RunContinuously bool
}

// ParseConfig builds a Config from the algorithm's scheduling columns.
// It fails only on values that cannot be parsed; mode requirements are checked by Validate.
func ParseConfig(a *entity.Algorithm) (Config, error) {
	cfg := Config{
		Type:            a.SchedulingType,
		Interval:        a.ExecutionInterval,
		RunContinuously: a.RunContinuously,
	}

	windows, err := ParseWindows(a.ExecutionTimeWindows.Data())
	if err != nil {
		return Config{}, err
	}
	cfg.Windows = windows

	for _, s := range a.ExecutionTimes {
		c, err := calendar.ParseClock(s)
		if err != nil {
			return Config{}, fmt.Errorf("execution time: %w", err)
		}
		cfg.Times = append(cfg.Times, c)
	}

	if cfg.Type == entity.SchedulingTimeWindows && cfg.Interval == "" {
		cfg.Interval = DefaultWindowInterval
	}
	return cfg, nil
}

// ParseWindows converts stored windows into clocks, rejecting inverted ranges.
func ParseWindows(raw []entity.TimeWindow) ([]Window, error) {
	windows := make([]Window, 0, len(raw))
	for _, w := range raw {
		start, err := calendar.ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("window start: %w", err)
		}
		end, err := calendar.ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("window end: %w", err)
		}
		if end < start {
			return nil, fmt.Errorf("window %s-%s ends before it starts", w.Start, w.End)
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows, nil
}

// Validate checks the requirements of the active mode.
func (c Config) Validate() error {
	switch c.Type {
	case entity.SchedulingInterval:
		_, err := IntervalDuration(c.Interval)
		return err
	case entity.SchedulingTimeWindows:
		if len(c.Windows) == 0 {
			return ErrNoWindows
		}
		_, err := IntervalDuration(c.Interval)
		return err
	case entity.SchedulingSingleTime:
		if len(c.Times) == 0 {
			return ErrNoTimes
		}
		return nil
	case entity.SchedulingContinuous:
		if !c.RunContinuously {
			return ErrNotContinuous
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
}
