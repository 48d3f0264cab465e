// Package academic derives the semester and the alternating-week parity from
// a date.
package academic

import (
	"time"

	"schedbot/internal/model"
)

// Calendar holds the academic-year configuration.
type Calendar struct {
	// SpringStartMonth is the first month of the spring semester (default February).
	SpringStartMonth time.Month
	// AutumnStartMonth is the first month of the autumn semester (default September).
	AutumnStartMonth time.Month
	// FirstWeekOdd reports whether odd ISO weeks are the academic "odd" weeks.
	FirstWeekOdd bool
}

// Default returns the usual September/February split with odd ISO weeks odd.
func Default() Calendar {
	return Calendar{
		SpringStartMonth: time.February,
		AutumnStartMonth: time.September,
		FirstWeekOdd:     true,
	}
}

func (c Calendar) normalized() Calendar {
	if c.SpringStartMonth < time.January || c.SpringStartMonth > time.December {
		c.SpringStartMonth = time.February
	}
	if c.AutumnStartMonth < time.January || c.AutumnStartMonth > time.December {
		c.AutumnStartMonth = time.September
	}
	return c
}

// Semester returns the semester t falls in. Summer months before the autumn
// start still belong to the spring semester.
func (c Calendar) Semester(t time.Time) model.Semester {
	c = c.normalized()
	m := t.Month()
	if m >= c.SpringStartMonth && m < c.AutumnStartMonth {
		return model.Spring
	}
	return model.Autumn
}

// Parity returns the academic parity of the week containing t.
func (c Calendar) Parity(t time.Time) model.WeekParity {
	_, week := t.ISOWeek()
	if (week%2 == 1) == c.FirstWeekOdd {
		return model.Odd
	}
	return model.Even
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

// DateInWeek returns the date of weekday within the Monday-based week that
// contains t.
func DateInWeek(t time.Time, weekday time.Weekday) time.Time {
	offset := (int(weekday) + 6) % 7
	return WeekStart(t).AddDate(0, 0, offset)
}
