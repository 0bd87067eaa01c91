// Package calendar decides whether a given day is an exchange trading day.
// The feed only publishes new rows on trading days, so the daily sync skips
// weekends and configured exchange holidays.
package calendar

import (
	"time"

	"github.com/fundlab/lofsync/internal/model"
)

// Calendar holds the configured exchange holidays.
type Calendar struct {
	holidays map[string]bool
}

// New builds a Calendar from holiday dates in "2006-01-02" form. Unparseable
// entries are ignored.
func New(holidays []string) *Calendar {
	c := &Calendar{holidays: make(map[string]bool, len(holidays))}
	for _, h := range holidays {
		if _, err := time.Parse(model.DateFormat, h); err == nil {
			c.holidays[h] = true
		}
	}
	return c
}

// IsTradingDay reports whether t falls on a trading day: a weekday that is
// not a configured holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[t.Format(model.DateFormat)]
}
