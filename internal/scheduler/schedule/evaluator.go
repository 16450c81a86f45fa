package schedule

import (
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/pkg/utils"
)

// SingleTimeTolerance is how far from a configured time of day a single_time run may start.
const SingleTimeTolerance = time.Minute

// Input is everything ShouldRun and NextRun look at.
type Input struct {
	Config    Config
	LastRunAt *time.Time
	Location  *time.Location
}

// Decision is the outcome of ShouldRun. Err is set when the configuration itself is unusable;
// such schedules are never due.
type Decision struct {
	Due    bool
	Reason string
	Err    error
}

func due(reason string) Decision    { return Decision{Due: true, Reason: reason} }
func notDue(reason string) Decision { return Decision{Reason: reason} }

func misconfigured(err error) Decision {
	return Decision{Reason: err.Error(), Err: err}
}

// ShouldRun decides whether the schedule is due at now.
func ShouldRun(in Input, now time.Time) Decision {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	t := calendar.ClockOf(now.In(loc))
	cfg := in.Config

	switch cfg.Type {
	case entity.SchedulingInterval:
		if len(cfg.Windows) > 0 && !InAnyWindow(cfg.Windows, t) {
			return notDue("outside execution windows")
		}
		return intervalElapsed(cfg.Interval, in.LastRunAt, now)

	case entity.SchedulingTimeWindows:
		if len(cfg.Windows) == 0 {
			return misconfigured(ErrNoWindows)
		}
		if !InAnyWindow(cfg.Windows, t) {
			return notDue("outside execution windows")
		}
		return intervalElapsed(cfg.Interval, in.LastRunAt, now)

	case entity.SchedulingSingleTime:
		if len(cfg.Times) == 0 {
			return misconfigured(ErrNoTimes)
		}
		if in.LastRunAt != nil && utils.SameDate(*in.LastRunAt, now, loc) {
			return notDue("already ran today")
		}
		for _, at := range cfg.Times {
			if calendar.Distance(t, at) <= SingleTimeTolerance {
				return due(fmt.Sprintf("scheduled time %s", at))
			}
		}
		return notDue("not at a scheduled time")

	case entity.SchedulingContinuous:
		if !cfg.RunContinuously {
			return misconfigured(ErrNotContinuous)
		}
		if len(cfg.Windows) > 0 && !InAnyWindow(cfg.Windows, t) {
			return notDue("outside execution windows")
		}
		return due("continuous")
	}

	return misconfigured(fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type))
}

func intervalElapsed(name string, lastRunAt *time.Time, now time.Time) Decision {
	d, err := IntervalDuration(name)
	if err != nil {
		return misconfigured(err)
	}
	if lastRunAt == nil {
		return due("first run")
	}
	if elapsed := now.Sub(*lastRunAt); elapsed < d {
		return notDue(fmt.Sprintf("%s until next %s run", (d - elapsed).Round(time.Second), name))
	}
	return due(fmt.Sprintf("%s interval elapsed", name))
}
