package ics

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedbot/internal/academic"
	"schedbot/internal/model"
)

// 2026-10-12 is the Monday of ISO week 42.
var (
	monday = time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	sunday = time.Date(2026, time.October, 25, 23, 59, 0, 0, time.UTC)
)

func tuesdayLesson(parity model.WeekParity, start, end *model.DayAndMonth) model.ScheduleItem {
	return model.ScheduleItem{
		Subject: model.Subject{Course: 2, Semester: model.Autumn, Name: "Algorithms"},
		EventTime: model.EventTime{
			DayOfWeek:  time.Tuesday,
			Pair:       2,
			StartDay:   start,
			EndDay:     end,
			WeekParity: parity,
		},
		Group:    "A",
		Location: "room 101",
	}
}

func baseConfig() ExpandConfig {
	return ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      monday,
		RangeEnd:        sunday,
		Calendar:        academic.Default(),
	}
}

func starts(occs []model.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Start.Format("2006-01-02 15:04"))
	}
	return out
}

func TestExpandWeekly(t *testing.T) {
	t.Parallel()
	res, err := ExpandOccurrences([]model.ScheduleItem{tuesdayLesson(model.Both, nil, nil)}, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-13 10:40", "2026-10-20 10:40"}, starts(res.Occurrences))

	occ := res.Occurrences[0]
	assert.Equal(t, 90*time.Minute, occ.End.Sub(occ.Start))
	assert.NotEqual(t, res.Occurrences[0].InstanceKey, res.Occurrences[1].InstanceKey)
	assert.Empty(t, res.TruncatedItems)
}

func TestExpandHonorsParity(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.ParityFilter = true
	items := []model.ScheduleItem{
		tuesdayLesson(model.Odd, &model.DayAndMonth{Day: 1, Month: time.September}, nil),
		tuesdayLesson(model.Even, nil, nil),
	}
	res, err := ExpandOccurrences(items, cfg)
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 2)
	assert.Equal(t, "2026-10-13 10:40", res.Occurrences[0].Start.Format("2006-01-02 15:04"))
	assert.Equal(t, model.Even, res.Occurrences[0].Item.EventTime.WeekParity)
	assert.Equal(t, "2026-10-20 10:40", res.Occurrences[1].Start.Format("2006-01-02 15:04"))
	assert.Equal(t, model.Odd, res.Occurrences[1].Item.EventTime.WeekParity)

	// Without the filter both recur weekly.
	cfg.ParityFilter = false
	res, err = ExpandOccurrences(items, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 4)
}

func TestExpandHolidaysAndWindow(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Holidays = []model.DayAndMonth{{Day: 20, Month: time.October}}
	res, err := ExpandOccurrences([]model.ScheduleItem{tuesdayLesson(model.Both, nil, nil)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-13 10:40"}, starts(res.Occurrences))

	late := tuesdayLesson(model.Both, &model.DayAndMonth{Day: 15, Month: time.October}, nil)
	early := tuesdayLesson(model.Both, nil, &model.DayAndMonth{Day: 13, Month: time.October})
	res, err = ExpandOccurrences([]model.ScheduleItem{late, early}, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-13 10:40", "2026-10-20 10:40"}, starts(res.Occurrences))
	assert.Equal(t, early.EventTime.EndDay, res.Occurrences[0].Item.EventTime.EndDay)
	assert.Equal(t, late.EventTime.StartDay, res.Occurrences[1].Item.EventTime.StartDay)
}

func TestExpandCapAndErrors(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.MaxOccurrencesPerItem = 1
	it := tuesdayLesson(model.Both, nil, nil)
	res, err := ExpandOccurrences([]model.ScheduleItem{it}, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 1)
	assert.Equal(t, []string{ItemUID(it)}, res.TruncatedItems)

	noTime := model.ScheduleItem{EventTime: model.EventTime{DayOfWeek: time.Monday}}
	res, err = ExpandOccurrences([]model.ScheduleItem{noTime}, baseConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)

	cfg = baseConfig()
	cfg.RangeEnd = cfg.RangeStart.Add(-time.Hour)
	_, err = ExpandOccurrences(nil, cfg)
	assert.Error(t, err)
}

func TestItemUIDIsStable(t *testing.T) {
	t.Parallel()
	a := tuesdayLesson(model.Both, nil, nil)
	b := tuesdayLesson(model.Both, nil, nil)
	assert.Equal(t, ItemUID(a), ItemUID(b))
	b.Group = "B"
	assert.NotEqual(t, ItemUID(a), ItemUID(b))
}

func TestExportSplitWindowsGetDistinctUIDs(t *testing.T) {
	t.Parallel()
	first := tuesdayLesson(model.Both,
		&model.DayAndMonth{Day: 1, Month: time.September},
		&model.DayAndMonth{Day: 15, Month: time.October})
	second := tuesdayLesson(model.Both,
		&model.DayAndMonth{Day: 16, Month: time.October},
		&model.DayAndMonth{Day: 31, Month: time.December})
	assert.NotEqual(t, ItemUID(first), ItemUID(second))

	moved := first
	moved.Location = "room 202"
	assert.NotEqual(t, ItemUID(first), ItemUID(moved))

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, []model.ScheduleItem{first, second}, ExportConfig{
		Now:      monday,
		Location: time.UTC,
		Calendar: academic.Default(),
	}))
	cal, err := ical.ParseCalendar(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].Id(), events[1].Id())
}

func TestExportRoundTrip(t *testing.T) {
	t.Parallel()
	it := tuesdayLesson(model.Both,
		&model.DayAndMonth{Day: 1, Month: time.September},
		&model.DayAndMonth{Day: 31, Month: time.December})
	it.Subgroup = 2
	it.Note = "bring laptop"

	var buf bytes.Buffer
	err := Export(&buf, []model.ScheduleItem{it}, ExportConfig{
		Name:     "Course 2",
		Now:      monday,
		Location: time.UTC,
		Holidays: []model.DayAndMonth{{Day: 3, Month: time.November}, {Day: 4, Month: time.November}},
		Calendar: academic.Default(),
	})
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	ev := events[0]

	assert.Equal(t, ItemUID(it)+"@schedbot", ev.Id())
	assert.Equal(t, "Algorithms", ev.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "room 101", ev.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Contains(t, ev.GetProperty(ical.ComponentPropertyDescription).Value, "subgroup 2")

	start, err := ev.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2026, time.September, 1, 10, 40, 0, 0, time.UTC)))
	end, err := ev.GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, end.Sub(start))

	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;UNTIL=20261231T235959Z", ev.GetProperty(ical.ComponentPropertyRrule).Value)
	// Only 3 November is a Tuesday.
	assert.Equal(t, "20261103T104000Z", ev.GetProperty(ical.ComponentPropertyExdate).Value)
}

func TestExportParityInterval(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := Export(&buf, []model.ScheduleItem{tuesdayLesson(model.Odd, nil, nil)}, ExportConfig{
		Now:          monday,
		Location:     time.UTC,
		Calendar:     academic.Default(),
		ParityFilter: true,
	})
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	ev := cal.Events()[0]
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=2", ev.GetProperty(ical.ComponentPropertyRrule).Value)
	start, err := ev.GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", start.Format(time.DateOnly))
	assert.Nil(t, ev.GetProperty(ical.ComponentPropertyExdate))
}
