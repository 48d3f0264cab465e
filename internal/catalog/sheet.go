package catalog

import (
	"context"
	"fmt"

	"schedbot/internal/cell"
	appLog "schedbot/internal/log"
	"schedbot/internal/model"
	"schedbot/internal/sheet"
)

// SheetSource reads subjects from a spreadsheet range whose rows are
// course | semester | name. When a Store is attached, every successful read
// is persisted and a failed fetch falls back to the stored catalog.
type SheetSource struct {
	Reader     sheet.Reader
	Range      string
	HeaderRows int
	Store      *SQLiteStore
}

func (s *SheetSource) Subjects(ctx context.Context, course model.Course) ([]model.Subject, error) {
	all, err := s.AllSubjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Subject, 0)
	for _, sub := range all {
		if sub.Course == course {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *SheetSource) AllSubjects(ctx context.Context) ([]model.Subject, error) {
	grid, err := s.Reader.Fetch(ctx, s.Range)
	if err != nil {
		if s.Store == nil {
			return nil, err
		}
		appLog.Error("subject range fetch failed; using stored catalog", err, "range", s.Range)
		return s.Store.AllSubjects(ctx)
	}

	subjects, rowErrs := ParseSubjects(grid, s.HeaderRows)
	for _, rerr := range rowErrs {
		appLog.Warn("subject row skipped", "range", s.Range, "err", rerr)
	}

	if s.Store != nil {
		if err := s.Store.Replace(ctx, subjects); err != nil {
			appLog.Error("subject catalog persist failed", err, "count", len(subjects))
		}
	}
	return subjects, nil
}

// ParseSubjects reads course | semester | name rows after headerRows. Blank
// rows are skipped; malformed rows are reported and skipped.
func ParseSubjects(grid sheet.Grid, headerRows int) ([]model.Subject, []error) {
	if headerRows < 0 {
		headerRows = 0
	}
	var (
		out  []model.Subject
		errs []error
	)
	for i := headerRows; i < len(grid); i++ {
		name := cell.Text(grid.Cell(i, 2))
		if name == "" {
			continue
		}
		course, ok, err := cell.ParseNullableInt(grid.Cell(i, 0))
		if err != nil || !ok || course <= 0 {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, cell.InColumn(orMalformed(err, grid.Cell(i, 0), "a course number"), "course")))
			continue
		}
		semester, ok, err := cell.ParseNullableInt(grid.Cell(i, 1))
		if err != nil || !ok || (semester != int(model.Autumn) && semester != int(model.Spring)) {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, cell.InColumn(orMalformed(err, grid.Cell(i, 1), "semester 1 or 2"), "semester")))
			continue
		}
		out = append(out, model.Subject{
			Course:   model.Course(course),
			Semester: model.Semester(semester),
			Name:     name,
		})
	}
	return out, errs
}

func orMalformed(err error, v any, expected string) error {
	if err != nil {
		return err
	}
	return &cell.MalformedCellError{Value: cell.Text(v), Expected: expected}
}
