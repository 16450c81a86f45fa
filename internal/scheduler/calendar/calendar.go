// Package calendar answers whether a region's market is open at an instant.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"golang-algo-trader/pkg/config"
	"golang-algo-trader/pkg/logger"
)

// Region is a resolved market calendar.
type Region struct {
	Name     string
	Location *time.Location
	Open     Clock
	Close    Clock
	Weekdays map[time.Weekday]bool
	Holidays map[string]bool
	Broker   string
	Currency string
}

// Calendar holds the configured regions and the fallback used for unknown names.
type Calendar struct {
	regions  map[string]Region
	fallback string
	logger   *logger.Logger
}

// New builds a calendar from market configuration. Every region must parse and the fallback must exist.
func New(cfg config.Market, log *logger.Logger) (*Calendar, error) {
	if len(cfg.Regions) == 0 {
		return nil, fmt.Errorf("no market regions configured")
	}

	c := &Calendar{
		regions:  make(map[string]Region, len(cfg.Regions)),
		fallback: cfg.FallbackRegion,
		logger:   log,
	}

	for name, rc := range cfg.Regions {
		region, err := newRegion(name, rc)
		if err != nil {
			return nil, err
		}
		c.regions[name] = region
	}

	if _, ok := c.regions[c.fallback]; !ok {
		return nil, fmt.Errorf("fallback region %q is not configured", c.fallback)
	}
	return c, nil
}

func newRegion(name string, rc config.Region) (Region, error) {
	loc, err := time.LoadLocation(rc.Timezone)
	if err != nil {
		return Region{}, fmt.Errorf("region %s: load timezone %q: %w", name, rc.Timezone, err)
	}
	open, err := ParseClock(rc.Open)
	if err != nil {
		return Region{}, fmt.Errorf("region %s: open: %w", name, err)
	}
	closeAt, err := ParseClock(rc.Close)
	if err != nil {
		return Region{}, fmt.Errorf("region %s: close: %w", name, err)
	}
	if closeAt < open {
		return Region{}, fmt.Errorf("region %s: close %s before open %s", name, closeAt, open)
	}

	weekdays := make(map[time.Weekday]bool, len(rc.Weekdays))
	for _, d := range rc.Weekdays {
		if d < 0 || d > 6 {
			return Region{}, fmt.Errorf("region %s: invalid weekday %d", name, d)
		}
		weekdays[time.Weekday(d)] = true
	}
	if len(weekdays) == 0 {
		for d := time.Monday; d <= time.Friday; d++ {
			weekdays[d] = true
		}
	}

	holidays := make(map[string]bool, len(rc.Holidays))
	for _, h := range rc.Holidays {
		if _, err := time.Parse(time.DateOnly, h); err != nil {
			return Region{}, fmt.Errorf("region %s: invalid holiday %q: %w", name, h, err)
		}
		holidays[h] = true
	}

	return Region{
		Name:     name,
		Location: loc,
		Open:     open,
		Close:    closeAt,
		Weekdays: weekdays,
		Holidays: holidays,
		Broker:   rc.Broker,
		Currency: rc.Currency,
	}, nil
}

// Region returns the named region, or the fallback region with a warning when the name is unknown.
func (c *Calendar) Region(name string) Region {
	if r, ok := c.regions[name]; ok {
		return r
	}
	c.logger.Warn("Unknown market region, using fallback",
		logger.StringField("region", name),
		logger.StringField("fallback", c.fallback))
	return c.regions[c.fallback]
}

// Regions returns the configured region names in sorted order.
func (c *Calendar) Regions() []string {
	names := make([]string, 0, len(c.regions))
	for name := range c.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOpen reports whether the region's market is open at now. Both open and close are inclusive.
func (c *Calendar) IsOpen(region string, now time.Time) bool {
	return c.Region(region).IsOpen(now)
}

// IsOpen reports whether the market is open at now.
func (r Region) IsOpen(now time.Time) bool {
	local := now.In(r.Location)
	if !r.Weekdays[local.Weekday()] {
		return false
	}
	if r.Holidays[local.Format(time.DateOnly)] {
		return false
	}
	t := ClockOf(local)
	return r.Open <= t && t <= r.Close
}
