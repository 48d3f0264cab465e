// Package ics turns schedule items into dated occurrences and iCalendar
// feeds. Recurrence is expressed with RRULE/EXDATE so the same rule drives
// both the in-process expansion and the exported VEVENTs.
package ics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"schedbot/internal/academic"
	appLog "schedbot/internal/log"
	"schedbot/internal/model"
	"schedbot/internal/validity"
)

const (
	defaultMaxOccurrencesPerItem = 500
)

// itemNamespace seeds the name-based UUIDs of schedule items.
var itemNamespace = uuid.MustParse("6f1f3c4e-5b7a-4d36-9a55-0c1f0b7d2e11")

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone of the lesson clock times.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// Holidays must be sorted.
	Holidays     []model.DayAndMonth
	Calendar     academic.Calendar
	ParityFilter bool

	// MaxOccurrencesPerItem is a safety cap. If zero,
	// defaultMaxOccurrencesPerItem is used.
	MaxOccurrencesPerItem int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedItems records UIDs that hit the MaxOccurrencesPerItem cap.
	TruncatedItems []string
}

// ItemUID returns a stable identifier for a schedule item, derived from the
// fields that make it distinct within a snapshot.
func ItemUID(it model.ScheduleItem) string {
	et := it.EventTime
	start, _ := et.Start()
	end, _ := et.End()
	key := fmt.Sprintf("%d|%d|%s|%s|%d|%d|%d|%s|%s|%s|%s|%s|%s",
		it.Subject.Course, it.Subject.Semester, it.Subject.Name,
		it.Group, it.Subgroup,
		et.DayOfWeek, et.Pair, start, end,
		et.WeekParity,
		dayKey(et.StartDay), dayKey(et.EndDay),
		it.Location,
	)
	return uuid.NewSHA1(itemNamespace, []byte(key)).String()
}

func dayKey(d *model.DayAndMonth) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// ExpandOccurrences expands schedule items into concrete occurrences within
// [RangeStart, RangeEnd], sorted by start time. Each item recurs weekly, or
// every other week for odd/even items when ParityFilter is set. Validity
// windows and holidays are honored the same way validity.Resolver does.
func ExpandOccurrences(items []model.ScheduleItem, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerItem <= 0 {
		cfg.MaxOccurrencesPerItem = defaultMaxOccurrencesPerItem
	}

	resolver := validity.Resolver{Holidays: cfg.Holidays}
	rangeStart := cfg.RangeStart.In(cfg.DisplayLocation)
	rangeEnd := cfg.RangeEnd.In(cfg.DisplayLocation)

	out := make([]model.Occurrence, 0)
	for _, it := range items {
		r, err := buildRule(it, rangeStart, cfg.Holidays, cfg.Calendar, cfg.ParityFilter)
		if err != nil {
			appLog.Warn("expand: skipping item", "subject", it.Subject.Name, "group", string(it.Group), "reason", err.Error())
			continue
		}

		uid := ItemUID(it)
		count := 0
		for _, start := range r.set.Between(rangeStart, rangeEnd, true) {
			day := model.DayAndMonthOf(start)
			if !validity.InWindow(it.EventTime, day) || resolver.IsHoliday(day) {
				continue
			}
			// INTERVAL=2 drifts after a 53-week year.
			if r.parity != model.Both && cfg.Calendar.Parity(start) != r.parity {
				continue
			}
			if count == cfg.MaxOccurrencesPerItem {
				result.TruncatedItems = append(result.TruncatedItems, uid)
				appLog.Error("expand: truncated occurrences for item due to cap",
					errors.New("max occurrences reached"),
					"uid", uid,
					"cap", cfg.MaxOccurrencesPerItem,
				)
				break
			}
			out = append(out, model.Occurrence{
				Item:        it,
				InstanceKey: uid + "@" + start.Format(time.RFC3339),
				Start:       start,
				End:         start.Add(r.duration),
			})
			count++
		}
	}

	slices.SortStableFunc(out, func(a, b model.Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	result.Occurrences = out
	return result, nil
}

// itemRule is the recurrence of one schedule item in a concrete year.
type itemRule struct {
	opts     rrule.ROption
	set      *rrule.Set
	exdates  []time.Time
	duration time.Duration
	parity   model.WeekParity
}

// buildRule anchors the year-less item on the year of ref (in ref's
// location). DTSTART is the first lesson on or after the window start, or
// after the start of ref's week when the item has no start day. UNTIL is the
// end of the window's last day. Holidays falling on the lesson weekday in
// ref's year and the next become EXDATEs.
func buildRule(it model.ScheduleItem, ref time.Time, holidays []model.DayAndMonth, cal academic.Calendar, parityFilter bool) (itemRule, error) {
	var out itemRule
	et := it.EventTime
	loc := ref.Location()

	startHM, ok := et.Start()
	if !ok {
		return out, errors.New("no start time")
	}
	endHM, ok := et.End()
	if !ok {
		return out, errors.New("no end time")
	}
	out.duration = time.Duration(endHM.Minutes()-startHM.Minutes()) * time.Minute
	if out.duration <= 0 {
		return out, fmt.Errorf("end %s is not after start %s", endHM, startHM)
	}

	year := ref.Year()
	from := academic.WeekStart(ref)
	if et.StartDay != nil {
		from = et.StartDay.In(year, loc)
	}
	first := from.AddDate(0, 0, (int(et.DayOfWeek)-int(from.Weekday())+7)%7)

	out.opts = rrule.ROption{Freq: rrule.WEEKLY, Interval: 1}
	if parityFilter && et.WeekParity != model.Both {
		out.parity = et.WeekParity
		out.opts.Interval = 2
		if cal.Parity(first) != et.WeekParity {
			first = first.AddDate(0, 0, 7)
		}
	}
	out.opts.Dtstart = time.Date(first.Year(), first.Month(), first.Day(), startHM.Hour, startHM.Minute, 0, 0, loc)
	if et.EndDay != nil {
		out.opts.Until = time.Date(year, et.EndDay.Month, et.EndDay.Day, 23, 59, 59, 0, loc)
	}

	r, err := rrule.NewRRule(out.opts)
	if err != nil {
		return out, fmt.Errorf("rrule: %w", err)
	}
	out.set = &rrule.Set{}
	out.set.RRule(r)

	for _, y := range []int{year, year + 1} {
		for _, h := range holidays {
			if h.Day > 28 && time.Date(y, h.Month, h.Day, 0, 0, 0, 0, loc).Month() != h.Month {
				continue
			}
			ex := time.Date(y, h.Month, h.Day, startHM.Hour, startHM.Minute, 0, 0, loc)
			if ex.Weekday() == et.DayOfWeek && !ex.Before(out.opts.Dtstart) {
				out.exdates = append(out.exdates, ex)
				out.set.ExDate(ex)
			}
		}
	}
	return out, nil
}

// DescribeItem renders the human-readable details of an item.
func DescribeItem(it model.ScheduleItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course %d, group %s", it.Subject.Course, it.Group)
	if it.Subgroup != 0 {
		fmt.Fprintf(&b, ", subgroup %d", it.Subgroup)
	}
	if it.EventTime.WeekParity != model.Both {
		fmt.Fprintf(&b, ", %s weeks", it.EventTime.WeekParity)
	}
	if it.Note != "" {
		b.WriteString(". ")
		b.WriteString(it.Note)
	}
	return b.String()
}
