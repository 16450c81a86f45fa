// Package autostop evaluates the duration and loss conditions that force an algorithm to stop.
package autostop

import (
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"

	"github.com/shopspring/decimal"
)

// Decision reports whether an algorithm must stop and why.
type Decision struct {
	Stop   bool
	Reason string
}

func keepRunning() Decision { return Decision{} }

func stop(format string, args ...interface{}) Decision {
	return Decision{Stop: true, Reason: fmt.Sprintf(format, args...)}
}

// DurationPolicy is the run-duration configuration of an algorithm.
type DurationPolicy struct {
	Type      entity.RunDurationType
	Value     int
	StartDate time.Time
	EndDate   *time.Time
}

// DurationPolicyOf reads the policy from an algorithm. StartDate defaults to the creation time.
func DurationPolicyOf(a *entity.Algorithm) DurationPolicy {
	p := DurationPolicy{
		Type:      a.RunDurationType,
		Value:     a.RunDurationValue,
		StartDate: a.CreatedAt,
		EndDate:   a.RunEndDate,
	}
	if a.RunStartDate != nil {
		p.StartDate = *a.RunStartDate
	}
	if p.Type == "" {
		p.Type = entity.RunForever
	}
	return p
}

// CheckDuration decides whether the configured run duration has been reached at now.
// Misconfigured policies (missing end date, non-positive value, unknown type) never stop.
func CheckDuration(p DurationPolicy, now time.Time) Decision {
	switch p.Type {
	case entity.RunForever:
		return keepRunning()

	case entity.RunUntilDate:
		if p.EndDate == nil {
			return keepRunning()
		}
		if !now.Before(*p.EndDate) {
			return stop("Run end date %s reached", p.EndDate.Format(time.DateOnly))
		}
		return keepRunning()

	case entity.RunDays:
		if p.Value <= 0 {
			return keepRunning()
		}
		if days := ElapsedDays(p.StartDate, now); days >= p.Value {
			return stop("Run duration of %d days reached", p.Value)
		}
		return keepRunning()

	case entity.RunMonths:
		if p.Value <= 0 {
			return keepRunning()
		}
		if months := ElapsedMonths(p.StartDate, now); months >= p.Value {
			return stop("Run duration of %d months reached", p.Value)
		}
		return keepRunning()

	case entity.RunYears:
		if p.Value <= 0 {
			return keepRunning()
		}
		if years := ElapsedMonths(p.StartDate, now) / 12; years >= p.Value {
			return stop("Run duration of %d years reached", p.Value)
		}
		return keepRunning()
	}
	return keepRunning()
}

// ElapsedDays counts whole 24-hour periods from start to now.
func ElapsedDays(start, now time.Time) int {
	if now.Before(start) {
		return 0
	}
	return int(now.Sub(start).Hours() / 24)
}

// ElapsedMonths counts whole calendar months from start to now. A month is complete once now
// reaches the same day and time of day as start; when the month is shorter than start's day,
// its last day is used.
func ElapsedMonths(start, now time.Time) int {
	now = now.In(start.Location())
	if now.Before(start) {
		return 0
	}
	months := (now.Year()-start.Year())*12 + int(now.Month()-start.Month())
	if AddMonthsClamped(start, months).After(now) {
		months--
	}
	return months
}

// AddMonthsClamped adds n calendar months to t, clamping the day to the target month's length.
// Jan 31 plus one month is Feb 28 (or 29) and Feb 29 plus twelve months is Feb 28.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m := t.Year(), int(t.Month())-1+n
	y += m / 12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	month := time.Month(m + 1)
	day := t.Day()
	if last := daysIn(y, month); day > last {
		day = last
	}
	return time.Date(y, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LossPolicy is the loss auto-stop configuration of an algorithm.
type LossPolicy struct {
	Enabled   bool
	Threshold decimal.NullDecimal
}

// LossPolicyOf reads the policy from an algorithm.
func LossPolicyOf(a *entity.Algorithm) LossPolicy {
	return LossPolicy{Enabled: a.AutoStopOnLoss, Threshold: a.AutoStopLossThreshold}
}

// Active reports whether the loss check can ever trigger.
func (p LossPolicy) Active() bool {
	return p.Enabled && p.Threshold.Valid
}

// CheckLoss stops once cumulative P&L is at or below -|threshold|.
func CheckLoss(p LossPolicy, cumulativePnL decimal.Decimal) Decision {
	if !p.Active() {
		return keepRunning()
	}
	limit := p.Threshold.Decimal.Abs().Neg()
	if cumulativePnL.LessThanOrEqual(limit) {
		return stop("Cumulative loss %s reached threshold %s", cumulativePnL.StringFixed(2), p.Threshold.Decimal.Abs().StringFixed(2))
	}
	return keepRunning()
}
