// Package validity decides whether a schedule item applies at a given
// instant. Nothing is cached: every call is evaluated against the supplied
// time.
package validity

import (
	"slices"
	"time"

	"schedbot/internal/academic"
	"schedbot/internal/model"
)

// Resolver evaluates validity windows, holidays and, optionally, week parity.
type Resolver struct {
	Holidays []model.DayAndMonth
	Calendar academic.Calendar
	// ParityFilter drops odd/even items outside their week. When false only
	// the day/month window and holidays apply.
	ParityFilter bool
}

// InWindow reports whether today lies inside the item's inclusive
// [StartDay, EndDay] window. A missing bound is open. The year is ignored.
func InWindow(et model.EventTime, today model.DayAndMonth) bool {
	if et.StartDay != nil && today.Before(*et.StartDay) {
		return false
	}
	if et.EndDay != nil && today.After(*et.EndDay) {
		return false
	}
	return true
}

// IsHoliday reports whether d is in the sorted holiday set.
func (r Resolver) IsHoliday(d model.DayAndMonth) bool {
	_, found := slices.BinarySearchFunc(r.Holidays, d, model.DayAndMonth.Compare)
	return found
}

// Active reports whether item applies as of now. The item's date this week
// (Monday-based, containing now) must not be a holiday.
func (r Resolver) Active(item model.ScheduleItem, now time.Time) bool {
	if !InWindow(item.EventTime, model.DayAndMonthOf(now)) {
		return false
	}
	if r.IsHoliday(model.DayAndMonthOf(academic.DateInWeek(now, item.EventTime.DayOfWeek))) {
		return false
	}
	if r.ParityFilter && item.EventTime.WeekParity != model.Both {
		return item.EventTime.WeekParity == r.Calendar.Parity(now)
	}
	return true
}

// Filter returns the items active at now, in their original order.
func (r Resolver) Filter(items []model.ScheduleItem, now time.Time) []model.ScheduleItem {
	out := make([]model.ScheduleItem, 0, len(items))
	for _, it := range items {
		if r.Active(it, now) {
			out = append(out, it)
		}
	}
	return out
}
