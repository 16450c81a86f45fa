package schedule

import (
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/pkg/utils"

	"github.com/robfig/cron/v3"
)

// NextRun computes next_scheduled_run for a schedule evaluated at now.
func NextRun(in Input, now time.Time) (time.Time, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	cfg := in.Config

	switch cfg.Type {
	case entity.SchedulingInterval, entity.SchedulingTimeWindows:
		d, err := IntervalDuration(cfg.Interval)
		if err != nil {
			return time.Time{}, err
		}
		next := cron.Every(d).Next(now)
		if len(cfg.Windows) > 0 {
			next = alignToWindows(next, loc, cfg.Windows)
		}
		return next, nil

	case entity.SchedulingSingleTime:
		if len(cfg.Times) == 0 {
			return time.Time{}, ErrNoTimes
		}
		from := now
		if in.LastRunAt != nil && utils.SameDate(*in.LastRunAt, now, loc) {
			from = utils.StartOfDay(now.In(loc)).AddDate(0, 0, 1).Add(-time.Second)
		}
		var next time.Time
		for _, at := range cfg.Times {
			spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), at.Minute(), at.Hour())
			sched, err := cron.ParseStandard(spec)
			if err != nil {
				return time.Time{}, fmt.Errorf("parse %q: %w", spec, err)
			}
			if n := sched.Next(from); next.IsZero() || n.Before(next) {
				next = n
			}
		}
		return next, nil

	case entity.SchedulingContinuous:
		if len(cfg.Windows) > 0 {
			return alignToWindows(now, loc, cfg.Windows), nil
		}
		return now, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
}

// alignToWindows returns t when it falls inside a window, otherwise the start of the next window.
func alignToWindows(t time.Time, loc *time.Location, windows []Window) time.Time {
	local := t.In(loc)
	c := calendar.ClockOf(local)
	if InAnyWindow(windows, c) {
		return t
	}

	var (
		laterToday calendar.Clock = -1
		earliest   calendar.Clock = -1
	)
	for _, w := range windows {
		if earliest < 0 || w.Start < earliest {
			earliest = w.Start
		}
		if w.Start > c && (laterToday < 0 || w.Start < laterToday) {
			laterToday = w.Start
		}
	}
	if laterToday >= 0 {
		return laterToday.On(local, loc)
	}
	return earliest.On(local.AddDate(0, 0, 1), loc)
}
