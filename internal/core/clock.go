package core

import "time"

// Clock supplies "today" for default date ranges and undated inserts.
type Clock interface {
	Today() Date
}

// SystemClock reads the local date from the system clock.
type SystemClock struct{}

func (SystemClock) Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// FixedClock always returns the same day.
type FixedClock struct {
	Day Date
}

func (c FixedClock) Today() Date {
	return c.Day
}

// MonthRange returns the first and last calendar day of the month containing d.
func MonthRange(d Date) (Date, Date) {
	first := NewDate(d.Year(), int(d.Month()), 1)
	last := Date{Time: first.AddDate(0, 1, -1)}
	return first, last
}
