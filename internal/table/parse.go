// Package table parses timetable and holiday ranges into typed schedule
// items. Problems are isolated per row: one bad row never stops the range.
package table

import (
	"errors"

	"schedbot/internal/cell"
	"schedbot/internal/model"
	"schedbot/internal/sheet"
)

// DefaultHeaderRows counts the readiness flag row and the column titles.
const DefaultHeaderRows = 2

// Options configures Parse for one range.
type Options struct {
	Range string
	// HeaderRows is the number of leading rows skipped, flag row included.
	// Zero means DefaultHeaderRows.
	HeaderRows int

	Catalog  Catalog
	Semester model.Semester
	// DefaultCourse is used by group cells that do not name a course.
	DefaultCourse model.Course
}

// Result is the outcome of parsing one timetable range.
type Result struct {
	Range string
	// Ready is false when the top-left flag is unset; Items is then empty.
	Ready     bool
	Items     []model.ScheduleItem
	RowErrors []*RowError
	Missing   []*SubjectNotFoundError
}

// Err joins every row error, or returns nil.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.RowErrors))
	for _, e := range r.RowErrors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Parse reads a timetable range. A grid whose top-left cell is not TRUE is
// mid-edit and yields a not-ready result with no items.
func Parse(grid sheet.Grid, opts Options) Result {
	res := Result{Range: opts.Range, Items: []model.ScheduleItem{}}
	if !cell.ParseBool(grid.Cell(0, 0)) {
		return res
	}
	res.Ready = true

	headerRows := opts.HeaderRows
	if headerRows <= 0 {
		headerRows = DefaultHeaderRows
	}
	x := Expander{
		Catalog:       opts.Catalog,
		Semester:      opts.Semester,
		DefaultCourse: opts.DefaultCourse,
	}
	if x.Catalog == nil {
		x.Catalog = emptyCatalog{}
	}

	for i := headerRows; i < len(grid); i++ {
		items, missing, err := x.Expand(grid[i], i+1)
		if err != nil {
			res.RowErrors = append(res.RowErrors, &RowError{Range: opts.Range, Row: i + 1, Err: err})
			continue
		}
		res.Items = append(res.Items, items...)
		res.Missing = append(res.Missing, missing...)
	}
	return res
}

type emptyCatalog struct{}

func (emptyCatalog) Lookup(model.Course, model.Semester, string) (model.Subject, bool) {
	return model.Subject{}, false
}
