package validity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"schedbot/internal/academic"
	"schedbot/internal/model"
)

func dm(day int, month time.Month) *model.DayAndMonth {
	return &model.DayAndMonth{Day: day, Month: month}
}

func item(day time.Weekday, start, end *model.DayAndMonth, parity model.WeekParity) model.ScheduleItem {
	return model.ScheduleItem{
		Subject: model.Subject{Course: 2, Semester: model.Autumn, Name: "Algorithms"},
		EventTime: model.EventTime{
			DayOfWeek:  day,
			Pair:       2,
			StartDay:   start,
			EndDay:     end,
			WeekParity: parity,
		},
		Group: "A",
	}
}

func TestInWindow(t *testing.T) {
	t.Parallel()
	today := model.DayAndMonth{Day: 15, Month: time.October}
	tests := []struct {
		name       string
		start, end *model.DayAndMonth
		want       bool
	}{
		{"open", nil, nil, true},
		{"inside", dm(1, time.September), dm(31, time.December), true},
		{"before start", dm(16, time.October), dm(31, time.December), false},
		{"after end", dm(1, time.September), dm(14, time.October), false},
		{"only start, reached", dm(15, time.October), nil, true},
		{"only start, ahead", dm(1, time.November), nil, false},
		{"only end, reached", nil, dm(15, time.October), true},
		{"only end, passed", nil, dm(1, time.October), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			et := model.EventTime{StartDay: tt.start, EndDay: tt.end}
			assert.Equal(t, tt.want, InWindow(et, today))
		})
	}
}

func TestActiveReflexiveBounds(t *testing.T) {
	t.Parallel()
	r := Resolver{Calendar: academic.Default()}
	today := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
	it := item(today.Weekday(), dm(14, time.October), dm(14, time.October), model.Both)

	assert.True(t, r.Active(it, today))
	assert.False(t, r.Active(it, today.AddDate(0, 0, -1)))
	assert.False(t, r.Active(it, today.AddDate(0, 0, 1)))
}

func TestHolidayOverridesWindow(t *testing.T) {
	t.Parallel()
	// Wednesday 4 November 2026.
	holiday := time.Date(2026, time.November, 4, 9, 0, 0, 0, time.UTC)
	r := Resolver{
		Holidays: []model.DayAndMonth{{Day: 1, Month: time.January}, {Day: 4, Month: time.November}},
		Calendar: academic.Default(),
	}
	wed := item(time.Wednesday, dm(1, time.September), dm(31, time.December), model.Both)
	thu := item(time.Thursday, dm(1, time.September), dm(31, time.December), model.Both)

	assert.False(t, r.Active(wed, holiday))
	// Checked from Monday of the same week the Wednesday lesson is still off.
	assert.False(t, r.Active(wed, holiday.AddDate(0, 0, -2)))
	assert.True(t, r.Active(thu, holiday))
	assert.True(t, r.Active(wed, holiday.AddDate(0, 0, 7)))

	assert.Empty(t, r.Filter([]model.ScheduleItem{wed}, holiday))
	assert.Len(t, r.Filter([]model.ScheduleItem{wed, thu}, holiday), 1)
}

func TestParityFilterIsOptional(t *testing.T) {
	t.Parallel()
	// ISO week 42 of 2026: even when odd ISO weeks are odd.
	now := time.Date(2026, time.October, 13, 10, 0, 0, 0, time.UTC)
	odd := item(time.Tuesday, nil, nil, model.Odd)
	even := item(time.Tuesday, nil, nil, model.Even)
	both := item(time.Tuesday, nil, nil, model.Both)

	off := Resolver{Calendar: academic.Default()}
	assert.True(t, off.Active(odd, now))
	assert.True(t, off.Active(even, now))

	on := Resolver{Calendar: academic.Default(), ParityFilter: true}
	assert.False(t, on.Active(odd, now))
	assert.True(t, on.Active(even, now))
	assert.True(t, on.Active(both, now))
	assert.True(t, on.Active(odd, now.AddDate(0, 0, 7)))

	flipped := on
	flipped.Calendar.FirstWeekOdd = false
	assert.True(t, flipped.Active(odd, now))
	assert.False(t, flipped.Active(even, now))
}

func TestIsHoliday(t *testing.T) {
	t.Parallel()
	r := Resolver{Holidays: []model.DayAndMonth{{Day: 1, Month: time.May}, {Day: 9, Month: time.May}}}
	assert.True(t, r.IsHoliday(model.DayAndMonth{Day: 9, Month: time.May}))
	assert.False(t, r.IsHoliday(model.DayAndMonth{Day: 2, Month: time.May}))
	assert.False(t, Resolver{}.IsHoliday(model.DayAndMonth{Day: 1, Month: time.May}))
}
