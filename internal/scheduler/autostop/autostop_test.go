package autostop

import (
	"testing"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestForeverNeverStops(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	d := CheckDuration(DurationPolicy{Type: entity.RunForever, StartDate: start}, time.Now())
	assert.False(t, d.Stop)
}

func TestUntilDate(t *testing.T) {
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := DurationPolicy{Type: entity.RunUntilDate, EndDate: &end}

	assert.False(t, CheckDuration(p, end.Add(-time.Second)).Stop)
	d := CheckDuration(p, end)
	assert.True(t, d.Stop)
	assert.Equal(t, "Run end date 2024-03-01 reached", d.Reason)

	assert.False(t, CheckDuration(DurationPolicy{Type: entity.RunUntilDate}, end).Stop)
}

func TestDays(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	p := DurationPolicy{Type: entity.RunDays, Value: 30, StartDate: start}

	assert.False(t, CheckDuration(p, start.AddDate(0, 0, 29)).Stop)
	assert.False(t, CheckDuration(p, start.AddDate(0, 0, 30).Add(-time.Second)).Stop)
	d := CheckDuration(p, start.AddDate(0, 0, 30))
	assert.True(t, d.Stop)
	assert.Equal(t, "Run duration of 30 days reached", d.Reason)
}

func TestMonthsComparesCalendarComponents(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	p := DurationPolicy{Type: entity.RunMonths, Value: 2, StartDate: start}

	assert.False(t, CheckDuration(p, time.Date(2024, 3, 14, 23, 0, 0, 0, time.UTC)).Stop)
	assert.False(t, CheckDuration(p, time.Date(2024, 3, 15, 9, 59, 59, 0, time.UTC)).Stop)
	assert.True(t, CheckDuration(p, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)).Stop)
}

func TestMonthsFromEndOfMonth(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, ElapsedMonths(start, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, ElapsedMonths(start, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, ElapsedMonths(start, time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, ElapsedMonths(start, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, ElapsedMonths(start, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)))
}

func TestYearsFromLeapDay(t *testing.T) {
	start := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	p := DurationPolicy{Type: entity.RunYears, Value: 1, StartDate: start}

	assert.False(t, CheckDuration(p, time.Date(2025, 2, 28, 11, 0, 0, 0, time.UTC)).Stop)
	d := CheckDuration(p, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC))
	assert.True(t, d.Stop)
	assert.Equal(t, "Run duration of 1 years reached", d.Reason)
}

func TestAddMonthsClamped(t *testing.T) {
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), AddMonthsClamped(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), AddMonthsClamped(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), AddMonthsClamped(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), -1))
}

func TestBeforeStartNeverStops(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(-time.Hour)
	assert.False(t, CheckDuration(DurationPolicy{Type: entity.RunDays, Value: 1, StartDate: start}, now).Stop)
	assert.False(t, CheckDuration(DurationPolicy{Type: entity.RunMonths, Value: 1, StartDate: start}, now).Stop)
}

func TestDurationPolicyOfDefaultsToCreation(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &entity.Algorithm{CreatedAt: created}
	p := DurationPolicyOf(a)
	assert.Equal(t, entity.RunForever, p.Type)
	assert.Equal(t, created, p.StartDate)

	explicit := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	a.RunStartDate = utils.ToPointer(explicit)
	assert.Equal(t, explicit, DurationPolicyOf(a).StartDate)
}

func TestLossThreshold(t *testing.T) {
	p := LossPolicy{Enabled: true, Threshold: decimal.NewNullDecimal(decimal.NewFromInt(500))}

	d := CheckLoss(p, decimal.NewFromInt(-500))
	assert.True(t, d.Stop)
	assert.Equal(t, "Cumulative loss -500.00 reached threshold 500.00", d.Reason)

	assert.False(t, CheckLoss(p, decimal.RequireFromString("-499.99")).Stop)
	assert.True(t, CheckLoss(p, decimal.NewFromInt(-750)).Stop)
	assert.False(t, CheckLoss(p, decimal.NewFromInt(200)).Stop)
}

func TestLossThresholdSignIgnored(t *testing.T) {
	p := LossPolicy{Enabled: true, Threshold: decimal.NewNullDecimal(decimal.NewFromInt(-100))}
	assert.True(t, CheckLoss(p, decimal.NewFromInt(-100)).Stop)
	assert.False(t, CheckLoss(p, decimal.NewFromInt(100)).Stop)
}

func TestLossDisabled(t *testing.T) {
	loss := decimal.NewFromInt(-1000000)
	assert.False(t, CheckLoss(LossPolicy{Enabled: false, Threshold: decimal.NewNullDecimal(decimal.NewFromInt(1))}, loss).Stop)
	assert.False(t, CheckLoss(LossPolicy{Enabled: true}, loss).Stop)
}
