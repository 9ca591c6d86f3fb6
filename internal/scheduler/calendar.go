package scheduler

import (
	"fmt"
	"time"
)

// Calendar answers whether the market session is open. Sessions run on
// weekdays between open and close, both inclusive, in loc.
type Calendar struct {
	loc   *time.Location
	open  int
	close int
}

// NewCalendar takes session bounds in minutes after local midnight.
func NewCalendar(loc *time.Location, open, close int) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	if open < 0 || close > 24*60 || open >= close {
		return nil, fmt.Errorf("invalid session %d-%d", open, close)
	}
	return &Calendar{loc: loc, open: open, close: close}, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// IsOpen reports whether t falls inside a session.
func (c *Calendar) IsOpen(t time.Time) bool {
	lt := t.In(c.loc)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := lt.Hour()*60 + lt.Minute()
	return m >= c.open && m <= c.close
}
