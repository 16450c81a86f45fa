package schedule

import (
	"testing"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/pkg/utils"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func clock(t *testing.T, s string) calendar.Clock {
	t.Helper()
	c, err := calendar.ParseClock(s)
	require.NoError(t, err)
	return c
}

func assertInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestIntervalBoundary(t *testing.T) {
	loc := ist(t)
	now := time.Date(2024, 1, 15, 11, 0, 0, 0, loc)
	cfg := Config{Type: entity.SchedulingInterval, Interval: "5min"}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just ran", 0, false},
		{"one second short", 299 * time.Second, false},
		{"exactly one period", 300 * time.Second, true},
		{"past one period", 301 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := now.Add(-tt.elapsed)
			d := ShouldRun(Input{Config: cfg, LastRunAt: &last, Location: loc}, now)
			assert.Equal(t, tt.want, d.Due)
			assert.NoError(t, d.Err)
		})
	}

	d := ShouldRun(Input{Config: cfg, Location: loc}, now)
	assert.True(t, d.Due, "never-run algorithm is due immediately")
}

func TestIntervalTable(t *testing.T) {
	for name, want := range map[string]time.Duration{
		"1min":   60 * time.Second,
		"5min":   300 * time.Second,
		"15min":  900 * time.Second,
		"hourly": 3600 * time.Second,
		"daily":  86400 * time.Second,
	} {
		got, err := IntervalDuration(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestUnknownIntervalFailsClosed(t *testing.T) {
	cfg := Config{Type: entity.SchedulingInterval, Interval: "weekly"}
	d := ShouldRun(Input{Config: cfg, Location: time.UTC}, time.Now())
	assert.False(t, d.Due)
	assert.ErrorIs(t, d.Err, ErrUnknownInterval)
}

func TestIntervalWithWindows(t *testing.T) {
	loc := ist(t)
	cfg := Config{
		Type:     entity.SchedulingInterval,
		Interval: "1min",
		Windows:  []Window{{Start: clock(t, "10:00"), End: clock(t, "11:00")}},
	}

	outside := time.Date(2024, 1, 15, 11, 0, 1, 0, loc)
	d := ShouldRun(Input{Config: cfg, Location: loc}, outside)
	assert.False(t, d.Due)
	assert.NoError(t, d.Err)

	inside := time.Date(2024, 1, 15, 10, 30, 0, 0, loc)
	assert.True(t, ShouldRun(Input{Config: cfg, Location: loc}, inside).Due)
}

func TestWindowContainsIsInclusive(t *testing.T) {
	w := Window{Start: clock(t, "10:00"), End: clock(t, "11:00")}
	assert.True(t, w.Contains(clock(t, "10:00")))
	assert.True(t, w.Contains(clock(t, "11:00")))
	assert.True(t, w.Contains(clock(t, "10:30")))
	assert.False(t, w.Contains(clock(t, "09:59:59")))
	assert.False(t, w.Contains(clock(t, "11:00:01")))

	ws := []Window{w, {Start: clock(t, "14:00"), End: clock(t, "15:00")}}
	assert.True(t, InAnyWindow(ws, clock(t, "14:00")))
	assert.False(t, InAnyWindow(ws, clock(t, "12:00")))
	assert.False(t, InAnyWindow(nil, clock(t, "12:00")))
}

func TestTimeWindows(t *testing.T) {
	loc := ist(t)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)

	empty := Config{Type: entity.SchedulingTimeWindows, Interval: "5min"}
	d := ShouldRun(Input{Config: empty, Location: loc}, now)
	assert.False(t, d.Due)
	assert.ErrorIs(t, d.Err, ErrNoWindows)

	cfg := Config{
		Type:     entity.SchedulingTimeWindows,
		Interval: "15min",
		Windows:  []Window{{Start: clock(t, "10:00"), End: clock(t, "10:30")}},
	}
	assert.True(t, ShouldRun(Input{Config: cfg, Location: loc}, now).Due)

	last := now.Add(-10 * time.Minute)
	assert.False(t, ShouldRun(Input{Config: cfg, LastRunAt: &last, Location: loc}, now).Due)

	last = now.Add(-15 * time.Minute)
	assert.True(t, ShouldRun(Input{Config: cfg, LastRunAt: &last, Location: loc}, now).Due)

	late := time.Date(2024, 1, 15, 10, 31, 0, 0, loc)
	assert.False(t, ShouldRun(Input{Config: cfg, Location: loc}, late).Due)
}

func TestSingleTimeTolerance(t *testing.T) {
	loc := ist(t)
	cfg := Config{Type: entity.SchedulingSingleTime, Times: []calendar.Clock{clock(t, "10:00"), clock(t, "14:00")}}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"exact", time.Date(2024, 1, 15, 10, 0, 0, 0, loc), true},
		{"minute early", time.Date(2024, 1, 15, 9, 59, 0, 0, loc), true},
		{"minute late", time.Date(2024, 1, 15, 10, 1, 0, 0, loc), true},
		{"too early", time.Date(2024, 1, 15, 9, 58, 59, 0, loc), false},
		{"too late", time.Date(2024, 1, 15, 10, 1, 1, 0, loc), false},
		{"second time", time.Date(2024, 1, 15, 14, 0, 30, 0, loc), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRun(Input{Config: cfg, Location: loc}, tt.at).Due)
		})
	}
}

func TestSingleTimeRunsOncePerLocalDay(t *testing.T) {
	loc := ist(t)
	cfg := Config{Type: entity.SchedulingSingleTime, Times: []calendar.Clock{clock(t, "10:00"), clock(t, "14:00")}}

	ranAt := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
	for _, at := range []time.Time{
		time.Date(2024, 1, 15, 10, 0, 30, 0, loc),
		time.Date(2024, 1, 15, 14, 0, 0, 0, loc),
		time.Date(2024, 1, 15, 23, 59, 59, 0, loc),
	} {
		d := ShouldRun(Input{Config: cfg, LastRunAt: &ranAt, Location: loc}, at)
		assert.False(t, d.Due, at.String())
	}

	nextDay := time.Date(2024, 1, 16, 10, 0, 0, 0, loc)
	assert.True(t, ShouldRun(Input{Config: cfg, LastRunAt: &ranAt, Location: loc}, nextDay).Due)
}

func TestSingleTimeComparesLocalDates(t *testing.T) {
	loc := ist(t)
	cfg := Config{Type: entity.SchedulingSingleTime, Times: []calendar.Clock{clock(t, "10:00")}}

	// 20:00 UTC on the 15th is 01:30 IST on the 16th.
	ranAt := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 16, 10, 0, 0, 0, loc)
	assert.False(t, ShouldRun(Input{Config: cfg, LastRunAt: &ranAt, Location: loc}, now).Due)
}

func TestSingleTimeRequiresTimes(t *testing.T) {
	d := ShouldRun(Input{Config: Config{Type: entity.SchedulingSingleTime}}, time.Now())
	assert.False(t, d.Due)
	assert.ErrorIs(t, d.Err, ErrNoTimes)
}

func TestContinuous(t *testing.T) {
	loc := ist(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, loc)
	last := now.Add(-time.Second)

	cfg := Config{Type: entity.SchedulingContinuous, RunContinuously: true}
	assert.True(t, ShouldRun(Input{Config: cfg, LastRunAt: &last, Location: loc}, now).Due)

	cfg.Windows = []Window{{Start: clock(t, "09:15"), End: clock(t, "11:00")}}
	assert.False(t, ShouldRun(Input{Config: cfg, Location: loc}, now).Due)

	cfg.Windows = nil
	cfg.RunContinuously = false
	d := ShouldRun(Input{Config: cfg, LastRunAt: &last, Location: loc}, now)
	assert.False(t, d.Due)
	assert.ErrorIs(t, d.Err, ErrNotContinuous)
}

func TestUnknownSchedulingType(t *testing.T) {
	d := ShouldRun(Input{Config: Config{Type: "lunar"}}, time.Now())
	assert.False(t, d.Due)
	assert.ErrorIs(t, d.Err, ErrUnknownType)
}

func TestParseConfig(t *testing.T) {
	algo := &entity.Algorithm{
		SchedulingType:       entity.SchedulingTimeWindows,
		ExecutionTimeWindows: datatypes.NewJSONType([]entity.TimeWindow{{Start: "09:15", End: "11:30"}}),
		ExecutionTimes:       pq.StringArray{"10:00"},
	}
	cfg, err := ParseConfig(algo)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowInterval, cfg.Interval)
	require.Len(t, cfg.Windows, 1)
	assert.Equal(t, clock(t, "09:15"), cfg.Windows[0].Start)
	assert.Equal(t, []calendar.Clock{clock(t, "10:00")}, cfg.Times)
	assert.NoError(t, cfg.Validate())

	algo.ExecutionTimeWindows = datatypes.NewJSONType([]entity.TimeWindow{{Start: "12:00", End: "11:00"}})
	_, err = ParseConfig(algo)
	assert.Error(t, err)

	algo.ExecutionTimeWindows = datatypes.NewJSONType([]entity.TimeWindow{})
	algo.ExecutionTimes = pq.StringArray{"10h"}
	_, err = ParseConfig(algo)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Config{Type: entity.SchedulingInterval, Interval: "2min"}.Validate(), ErrUnknownInterval)
	assert.ErrorIs(t, Config{Type: entity.SchedulingTimeWindows, Interval: "5min"}.Validate(), ErrNoWindows)
	assert.ErrorIs(t, Config{Type: entity.SchedulingSingleTime}.Validate(), ErrNoTimes)
	assert.NoError(t, Config{Type: entity.SchedulingContinuous, RunContinuously: true}.Validate())
	assert.ErrorIs(t, Config{Type: entity.SchedulingContinuous}.Validate(), ErrNotContinuous)
	assert.ErrorIs(t, Config{Type: "weekly"}.Validate(), ErrUnknownType)
}

func TestNextRun(t *testing.T) {
	loc := ist(t)

	t.Run("daily is the same time next day", func(t *testing.T) {
		now := time.Date(2024, 1, 15, 9, 16, 0, 0, loc)
		next, err := NextRun(Input{Config: Config{Type: entity.SchedulingInterval, Interval: "daily"}, Location: loc}, now)
		require.NoError(t, err)
		assertInstant(t, time.Date(2024, 1, 16, 9, 16, 0, 0, loc), next)
	})

	t.Run("interval past last window rolls to next day", func(t *testing.T) {
		cfg := Config{
			Type:     entity.SchedulingTimeWindows,
			Interval: "5min",
			Windows:  []Window{{Start: clock(t, "09:15"), End: clock(t, "15:30")}},
		}
		now := time.Date(2024, 1, 15, 15, 28, 0, 0, loc)
		next, err := NextRun(Input{Config: cfg, Location: loc}, now)
		require.NoError(t, err)
		assertInstant(t, time.Date(2024, 1, 16, 9, 15, 0, 0, loc), next)
	})

	t.Run("interval between windows moves to next window", func(t *testing.T) {
		cfg := Config{
			Type:     entity.SchedulingInterval,
			Interval: "hourly",
			Windows: []Window{
				{Start: clock(t, "09:15"), End: clock(t, "10:00")},
				{Start: clock(t, "13:00"), End: clock(t, "14:00")},
			},
		}
		now := time.Date(2024, 1, 15, 9, 30, 0, 0, loc)
		next, err := NextRun(Input{Config: cfg, Location: loc}, now)
		require.NoError(t, err)
		assertInstant(t, time.Date(2024, 1, 15, 13, 0, 0, 0, loc), next)
	})

	t.Run("single time later today", func(t *testing.T) {
		cfg := Config{Type: entity.SchedulingSingleTime, Times: []calendar.Clock{clock(t, "09:30"), clock(t, "14:00")}}
		now := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
		next, err := NextRun(Input{Config: cfg, Location: loc}, now)
		require.NoError(t, err)
		assertInstant(t, time.Date(2024, 1, 15, 14, 0, 0, 0, loc), next)
	})

	t.Run("single time already ran today", func(t *testing.T) {
		cfg := Config{Type: entity.SchedulingSingleTime, Times: []calendar.Clock{clock(t, "09:30"), clock(t, "14:00")}}
		now := time.Date(2024, 1, 15, 9, 30, 5, 0, loc)
		next, err := NextRun(Input{Config: cfg, LastRunAt: utils.ToPointer(now), Location: loc}, now)
		require.NoError(t, err)
		assertInstant(t, time.Date(2024, 1, 16, 9, 30, 0, 0, loc), next)
	})

	t.Run("continuous is now", func(t *testing.T) {
		now := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
		cfg := Config{Type: entity.SchedulingContinuous, RunContinuously: true}
		next, err := NextRun(Input{Config: cfg, Location: loc}, now)
		require.NoError(t, err)
		assert.Equal(t, now, next)
	})

	t.Run("unknown interval", func(t *testing.T) {
		_, err := NextRun(Input{Config: Config{Type: entity.SchedulingInterval, Interval: "fortnightly"}}, time.Now())
		assert.ErrorIs(t, err, ErrUnknownInterval)
	})
}
