package schedule

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"schedbot/internal/catalog"
	appLog "schedbot/internal/log"
	"schedbot/internal/model"
	"schedbot/internal/sheet"
	"schedbot/internal/table"
)

// Range is one timetable range and the course its bare group tokens belong to.
type Range struct {
	ID     string
	Course model.Course
}

// Refresher rebuilds snapshots from the raw sheets and publishes them on an
// Engine. Refresh calls are serialized.
type Refresher struct {
	Engine  *Engine
	Reader  sheet.Reader
	Catalog catalog.Source

	Ranges       []Range
	HolidayRange string

	// Zero selects the table package defaults.
	HeaderRows        int
	HolidayHeaderRows int

	mu sync.Mutex
}

// Refresh fetches every range, parses it and publishes the result. A fetch
// or catalog failure publishes nothing and leaves the previous snapshot in
// place. A range whose readiness flag is unset contributes no items; the
// resulting snapshot is still published.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Engine.Now()
	semester := r.Engine.Calendar().Semester(now)

	subjects, err := r.Catalog.AllSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subject catalog: %w", err)
	}
	index := catalog.NewIndex(subjects)
	if index.Len() == 0 {
		appLog.Warn("subject catalog is empty; every lesson will be reported missing", "semester", int(semester))
	}

	// Fetch everything before parsing so a transport failure cannot leave a
	// half-built snapshot behind.
	grids := make([]sheet.Grid, len(r.Ranges))
	for i, rg := range r.Ranges {
		if grids[i], err = r.Reader.Fetch(ctx, rg.ID); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rg.ID, err)
		}
	}
	var holidayGrid sheet.Grid
	if r.HolidayRange != "" {
		if holidayGrid, err = r.Reader.Fetch(ctx, r.HolidayRange); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", r.HolidayRange, err)
		}
	}

	snap := &Snapshot{
		ID:      uuid.New(),
		BuiltAt: now,
		Ready:   true,
		Items:   []model.ScheduleItem{},

		CatalogSize: index.Len(),
	}
	for i, rg := range r.Ranges {
		res := table.Parse(grids[i], table.Options{
			Range:         rg.ID,
			HeaderRows:    r.HeaderRows,
			Catalog:       index,
			Semester:      semester,
			DefaultCourse: rg.Course,
		})
		if !res.Ready {
			snap.Ready = false
			snap.NotReady = append(snap.NotReady, rg.ID)
			appLog.Warn("range skipped", "range", rg.ID, "reason", table.ErrNotReady.Error())
			continue
		}
		snap.Items = append(snap.Items, res.Items...)
		snap.RowErrors = append(snap.RowErrors, res.RowErrors...)
		snap.Missing = append(snap.Missing, res.Missing...)
	}

	if holidayGrid != nil {
		holidays, errs := table.ParseHolidays(holidayGrid, r.HolidayRange, r.HolidayHeaderRows)
		snap.Holidays = holidays
		snap.RowErrors = append(snap.RowErrors, errs...)
	}
	if snap.Holidays == nil {
		snap.Holidays = []model.DayAndMonth{}
	}

	SortItems(snap.Items)
	r.logProblems(snap)
	r.Engine.Publish(snap)

	appLog.Debug("schedule snapshot published",
		"snapshot_id", snap.ID.String(),
		"ready", snap.Ready,
		"items", len(snap.Items),
		"holidays", len(snap.Holidays),
		"row_errors", len(snap.RowErrors),
		"missing_subjects", len(snap.Missing),
		"catalog_subjects", snap.CatalogSize,
		"semester", int(semester),
	)
	return snap, nil
}

// logProblems reports row errors and, once per subject, catalog misses.
func (r *Refresher) logProblems(snap *Snapshot) {
	for _, re := range snap.RowErrors {
		appLog.Warn("row dropped", "range", re.Range, "row", re.Row, "reason", re.Err.Error())
	}
	type key struct {
		course model.Course
		name   string
	}
	seen := make(map[key]struct{})
	for _, m := range snap.Missing {
		k := key{m.Course, m.Name}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		appLog.Warn("subject not in catalog", "course", int(m.Course), "semester", int(m.Semester), "subject", m.Name, "first_row", m.Row)
	}
}

// MissingSubjects returns the distinct subject names the snapshot could not
// resolve, sorted.
func (s *Snapshot) MissingSubjects() []string {
	names := make([]string, 0, len(s.Missing))
	for _, m := range s.Missing {
		names = append(names, fmt.Sprintf("%d/%s", m.Course, m.Name))
	}
	slices.Sort(names)
	return slices.Compact(names)
}
