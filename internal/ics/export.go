package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"schedbot/internal/academic"
	appLog "schedbot/internal/log"
	"schedbot/internal/model"
)

const exdateLayout = "20060102T150405Z"

// ExportConfig controls Export.
type ExportConfig struct {
	// Name is the X-WR-CALNAME of the feed.
	Name string

	// Now stamps the events and picks the year the windows are placed in.
	Now      time.Time
	Location *time.Location

	// Holidays must be sorted.
	Holidays     []model.DayAndMonth
	Calendar     academic.Calendar
	ParityFilter bool
}

// Export writes an iCalendar feed with one recurring VEVENT per item.
// Items whose times cannot be resolved are skipped.
func Export(w io.Writer, items []model.ScheduleItem, cfg ExportConfig) error {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	ref := cfg.Now.In(cfg.Location)

	cal := ical.NewCalendarFor("schedbot")
	cal.SetMethod(ical.MethodPublish)
	if cfg.Name != "" {
		cal.SetName(cfg.Name)
		cal.SetXWRCalName(cfg.Name)
	}
	cal.SetXWRTimezone(cfg.Location.String())

	for _, it := range items {
		r, err := buildRule(it, ref, cfg.Holidays, cfg.Calendar, cfg.ParityFilter)
		if err != nil {
			appLog.Warn("ics export: skipping item", "subject", it.Subject.Name, "group", string(it.Group), "reason", err.Error())
			continue
		}

		ev := cal.AddEvent(ItemUID(it) + "@schedbot")
		ev.SetDtStampTime(cfg.Now)
		ev.SetStartAt(r.opts.Dtstart)
		ev.SetEndAt(r.opts.Dtstart.Add(r.duration))
		ev.SetSummary(it.Subject.Name)
		ev.SetDescription(DescribeItem(it))
		if it.Location != "" {
			ev.SetLocation(it.Location)
		}
		ev.AddRrule(r.opts.RRuleString())
		if len(r.exdates) > 0 {
			ex := make([]string, 0, len(r.exdates))
			for _, t := range r.exdates {
				ex = append(ex, t.UTC().Format(exdateLayout))
			}
			ev.AddExdate(strings.Join(ex, ","))
		}
	}

	return cal.SerializeTo(w)
}
