package model

import (
	"fmt"
	"time"
)

// Course is the academic year of study, starting at 1.
type Course int

// Group identifies a class section within a course ("1", "2", "A").
type Group string

// Subgroup is a numbered part of a group. Zero means the whole group.
type Subgroup int

// Semester is 1 for the autumn term and 2 for the spring term.
type Semester int

const (
	Autumn Semester = 1
	Spring Semester = 2
)

// Subject is identified by course, semester and name.
type Subject struct {
	Course   Course   `json:"course"`
	Semester Semester `json:"semester"`
	Name     string   `json:"name"`
}

// Flow is one (course, group) target of a timetable row.
type Flow struct {
	Course Course `json:"course"`
	Group  Group  `json:"group"`
}

// HourAndMinute is a wall-clock time of day.
type HourAndMinute struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (hm HourAndMinute) String() string {
	return fmt.Sprintf("%02d:%02d", hm.Hour, hm.Minute)
}

// Minutes returns the number of minutes since midnight.
func (hm HourAndMinute) Minutes() int {
	return hm.Hour*60 + hm.Minute
}

// DayAndMonth is a calendar date without a year. Ordering is by month, then day.
type DayAndMonth struct {
	Day   int        `json:"day"`
	Month time.Month `json:"month"`
}

// DayAndMonthOf strips the year and clock from t.
func DayAndMonthOf(t time.Time) DayAndMonth {
	return DayAndMonth{Day: t.Day(), Month: t.Month()}
}

func (d DayAndMonth) String() string {
	return fmt.Sprintf("%02d.%02d", d.Day, int(d.Month))
}

// Compare returns -1, 0 or +1. The year is not considered.
func (d DayAndMonth) Compare(o DayAndMonth) int {
	switch {
	case d.Month < o.Month:
		return -1
	case d.Month > o.Month:
		return 1
	case d.Day < o.Day:
		return -1
	case d.Day > o.Day:
		return 1
	default:
		return 0
	}
}

func (d DayAndMonth) Before(o DayAndMonth) bool { return d.Compare(o) < 0 }
func (d DayAndMonth) After(o DayAndMonth) bool  { return d.Compare(o) > 0 }

// In places d in the given year and location at midnight.
func (d DayAndMonth) In(year int, loc *time.Location) time.Time {
	return time.Date(year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// WeekParity is the recurrence rule of alternating-week lessons.
type WeekParity int

const (
	Both WeekParity = iota
	Odd
	Even
)

func (p WeekParity) String() string {
	switch p {
	case Odd:
		return "odd"
	case Even:
		return "even"
	default:
		return "both"
	}
}

func (p WeekParity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// EventTime describes when a scheduled lesson takes place.
//
// Either Pair is non-zero or both StartTime and EndTime are set. StartDay and
// EndDay, when present, bound the inclusive calendar window of validity.
type EventTime struct {
	DayOfWeek  time.Weekday   `json:"day_of_week"`
	Pair       Pair           `json:"pair,omitempty"`
	StartTime  *HourAndMinute `json:"start_time,omitempty"`
	EndTime    *HourAndMinute `json:"end_time,omitempty"`
	StartDay   *DayAndMonth   `json:"start_day,omitempty"`
	EndDay     *DayAndMonth   `json:"end_day,omitempty"`
	WeekParity WeekParity     `json:"week_parity"`
}

// Start resolves the lesson start: the pair lookup wins over an explicit time.
func (et EventTime) Start() (HourAndMinute, bool) {
	if span, ok := et.Pair.Span(); ok {
		return span.Start, true
	}
	if et.StartTime != nil {
		return *et.StartTime, true
	}
	return HourAndMinute{}, false
}

// End resolves the lesson end the same way Start does.
func (et EventTime) End() (HourAndMinute, bool) {
	if span, ok := et.Pair.Span(); ok {
		return span.End, true
	}
	if et.EndTime != nil {
		return *et.EndTime, true
	}
	return HourAndMinute{}, false
}

// ScheduleItem is one concrete lesson for one group or subgroup.
type ScheduleItem struct {
	Subject   Subject   `json:"subject"`
	EventTime EventTime `json:"event_time"`
	Group     Group     `json:"group"`
	Subgroup  Subgroup  `json:"subgroup,omitempty"`
	Location  string    `json:"location"`
	Note      string    `json:"note"`
}

// Occurrence is a single dated instance of a ScheduleItem.
type Occurrence struct {
	Item ScheduleItem `json:"item"`

	// InstanceKey uniquely identifies the occurrence within one expansion.
	InstanceKey string `json:"instance_key"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
