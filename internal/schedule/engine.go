// Package schedule answers queries over the latest published snapshot of
// parsed schedule items.
package schedule

import (
	"cmp"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"schedbot/internal/academic"
	"schedbot/internal/ics"
	"schedbot/internal/model"
	"schedbot/internal/table"
	"schedbot/internal/validity"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Snapshot is one complete parse result. It is never modified after being
// published.
type Snapshot struct {
	ID      uuid.UUID
	BuiltAt time.Time
	// Ready is false when at least one range had its readiness flag unset.
	Ready     bool
	NotReady  []string
	Items     []model.ScheduleItem
	Holidays  []model.DayAndMonth
	RowErrors []*table.RowError
	Missing   []*table.SubjectNotFoundError
	// CatalogSize is the number of subjects rows were resolved against.
	CatalogSize int
}

// Options configures an Engine.
type Options struct {
	Calendar     academic.Calendar
	ParityFilter bool
	// Location is the service time zone. Nil means time.Local.
	Location *time.Location
}

// Engine serves read-only queries. It is safe for concurrent use.
type Engine struct {
	clock Clock
	opts  Options
	snap  atomic.Pointer[Snapshot]
}

// NewEngine returns an Engine with no snapshot published yet.
func NewEngine(clock Clock, opts Options) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{clock: clock, opts: opts}
}

// Now returns the clock reading in the service time zone.
func (e *Engine) Now() time.Time {
	return e.clock.Now().In(e.opts.Location)
}

// Calendar returns the academic calendar the engine evaluates parity with.
func (e *Engine) Calendar() academic.Calendar {
	return e.opts.Calendar
}

// Publish makes s the snapshot seen by every subsequent query.
func (e *Engine) Publish(s *Snapshot) {
	e.snap.Store(s)
}

// Snapshot returns the current snapshot, or nil before the first publish.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

func (e *Engine) resolver(s *Snapshot) validity.Resolver {
	return validity.Resolver{
		Holidays:     s.Holidays,
		Calendar:     e.opts.Calendar,
		ParityFilter: e.opts.ParityFilter,
	}
}

// active returns the items of the current snapshot that apply now and
// satisfy keep. The snapshot is loaded once per call.
func (e *Engine) active(keep func(model.ScheduleItem) bool) []model.ScheduleItem {
	out := []model.ScheduleItem{}
	s := e.snap.Load()
	if s == nil {
		return out
	}
	now := e.Now()
	r := e.resolver(s)
	for _, it := range s.Items {
		if keep(it) && r.Active(it, now) {
			out = append(out, it)
		}
	}
	return out
}

// GetByCourse returns active items of the course.
func (e *Engine) GetByCourse(course model.Course) []model.ScheduleItem {
	return e.active(func(it model.ScheduleItem) bool {
		return it.Subject.Course == course
	})
}

// GetByGroup returns active items of one group of a course.
func (e *Engine) GetByGroup(course model.Course, group model.Group) []model.ScheduleItem {
	return e.active(func(it model.ScheduleItem) bool {
		return it.Subject.Course == course && it.Group == group
	})
}

// GetByDayOfWeek returns active items held on day.
func (e *Engine) GetByDayOfWeek(day time.Weekday) []model.ScheduleItem {
	return e.active(func(it model.ScheduleItem) bool {
		return it.EventTime.DayOfWeek == day
	})
}

// GetByDayOfWeekAndStartsAt narrows GetByDayOfWeek to lessons starting at hm.
func (e *Engine) GetByDayOfWeekAndStartsAt(day time.Weekday, hm model.HourAndMinute) []model.ScheduleItem {
	return e.active(func(it model.ScheduleItem) bool {
		start, ok := it.EventTime.Start()
		return it.EventTime.DayOfWeek == day && ok && start == hm
	})
}

// GetByDayOfWeekAndEndsAt narrows GetByDayOfWeek to lessons ending at hm.
func (e *Engine) GetByDayOfWeekAndEndsAt(day time.Weekday, hm model.HourAndMinute) []model.ScheduleItem {
	return e.active(func(it model.ScheduleItem) bool {
		end, ok := it.EventTime.End()
		return it.EventTime.DayOfWeek == day && ok && end == hm
	})
}

// GetHolidays returns the holiday set of the current snapshot.
func (e *Engine) GetHolidays() []model.DayAndMonth {
	s := e.snap.Load()
	if s == nil {
		return []model.DayAndMonth{}
	}
	return slices.Clone(s.Holidays)
}

// Upcoming expands the snapshot into dated occurrences in [from, to].
func (e *Engine) Upcoming(from, to time.Time) (ics.ExpandResult, error) {
	s := e.snap.Load()
	if s == nil {
		return ics.ExpandResult{Occurrences: []model.Occurrence{}}, nil
	}
	return ics.ExpandOccurrences(s.Items, ics.ExpandConfig{
		DisplayLocation: e.opts.Location,
		RangeStart:      from,
		RangeEnd:        to,
		Holidays:        s.Holidays,
		Calendar:        e.opts.Calendar,
		ParityFilter:    e.opts.ParityFilter,
	})
}

// ExportConfig returns the iCalendar export settings matching the engine.
func (e *Engine) ExportConfig(name string) ics.ExportConfig {
	var holidays []model.DayAndMonth
	if s := e.snap.Load(); s != nil {
		holidays = s.Holidays
	}
	return ics.ExportConfig{
		Name:         name,
		Now:          e.Now(),
		Location:     e.opts.Location,
		Holidays:     holidays,
		Calendar:     e.opts.Calendar,
		ParityFilter: e.opts.ParityFilter,
	}
}

// SortItems orders items by weekday (Monday first), start time, course,
// group, subgroup and subject name.
func SortItems(items []model.ScheduleItem) {
	slices.SortStableFunc(items, func(a, b model.ScheduleItem) int {
		as, _ := a.EventTime.Start()
		bs, _ := b.EventTime.Start()
		return cmp.Or(
			cmp.Compare(mondayFirst(a.EventTime.DayOfWeek), mondayFirst(b.EventTime.DayOfWeek)),
			cmp.Compare(as.Minutes(), bs.Minutes()),
			cmp.Compare(a.Subject.Course, b.Subject.Course),
			cmp.Compare(a.Group, b.Group),
			cmp.Compare(a.Subgroup, b.Subgroup),
			cmp.Compare(a.Subject.Name, b.Subject.Name),
		)
	})
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
