package table

import (
	"schedbot/internal/cell"
	"schedbot/internal/model"
)

// Column positions of a timetable row.
const (
	colDay = iota
	colPairs
	colSubject
	colGroups
	colSubgroup
	colLocation
	colNote
	colParity
	colStart
	colEnd

	rowWidth
)

// Catalog resolves subjects by course, semester and name.
type Catalog interface {
	Lookup(course model.Course, semester model.Semester, name string) (model.Subject, bool)
}

// Expander turns timetable rows into schedule items.
type Expander struct {
	Catalog  Catalog
	Semester model.Semester
	// DefaultCourse applies to group tokens without an explicit course.
	DefaultCourse model.Course
}

// parsedRow holds the typed cells shared by every item of one row.
type parsedRow struct {
	base     model.EventTime
	pairs    []int
	subject  string
	flows    []model.Flow
	subgroup model.Subgroup
	location string
	note     string
	start    cell.DateOrTime
	end      cell.DateOrTime
}

// Expand converts one row into the cartesian product of its lesson slots and
// its (course, group) targets. A blank subject marks a spacer row and yields
// nothing. Subjects missing from the catalog skip only their own targets and
// are returned as notes. A malformed cell aborts the row.
func (x Expander) Expand(row []any, rowNum int) ([]model.ScheduleItem, []*SubjectNotFoundError, error) {
	if len(row) < rowWidth {
		padded := make([]any, rowWidth)
		copy(padded, row)
		row = padded
	}
	if cell.IsBlank(row[colSubject]) {
		return nil, nil, nil
	}

	p, err := x.parse(row)
	if err != nil {
		return nil, nil, err
	}

	var missing []*SubjectNotFoundError
	subjects := make([]model.Subject, len(p.flows))
	resolved := make([]bool, len(p.flows))
	for i, f := range p.flows {
		s, ok := x.Catalog.Lookup(f.Course, x.Semester, p.subject)
		if !ok {
			if !containsMissing(missing, f.Course) {
				missing = append(missing, &SubjectNotFoundError{Row: rowNum, Course: f.Course, Semester: x.Semester, Name: p.subject})
			}
			continue
		}
		subjects[i] = s
		resolved[i] = true
	}

	pairs := p.pairs
	if len(pairs) == 0 {
		pairs = []int{0}
	}

	items := make([]model.ScheduleItem, 0, len(pairs)*len(p.flows))
	for _, pair := range pairs {
		for i, f := range p.flows {
			if !resolved[i] {
				continue
			}
			et := p.base
			et.Pair = model.Pair(pair)
			et.StartTime = p.start.HourAndMinute()
			et.EndTime = p.end.HourAndMinute()
			et.StartDay = p.start.DayAndMonth()
			et.EndDay = p.end.DayAndMonth()

			items = append(items, model.ScheduleItem{
				Subject:   subjects[i],
				EventTime: et,
				Group:     f.Group,
				Subgroup:  p.subgroup,
				Location:  p.location,
				Note:      p.note,
			})
		}
	}
	return items, missing, nil
}

func (x Expander) parse(row []any) (parsedRow, error) {
	var p parsedRow

	day, ok, err := cell.ParseDay(row[colDay])
	if err != nil {
		return p, cell.InColumn(err, "day")
	}
	if !ok {
		return p, required(row[colDay], "day", "a day of week")
	}
	p.base.DayOfWeek = day
	p.base.WeekParity = cell.ParseParity(row[colParity])

	if p.pairs, err = cell.ParseRange(row[colPairs]); err != nil {
		return p, cell.InColumn(err, "pairs")
	}
	for _, n := range p.pairs {
		if !model.Pair(n).Valid() {
			return p, required(row[colPairs], "pairs", "lesson slots 1-7")
		}
	}

	p.subject = cell.Text(row[colSubject])

	if p.flows, err = cell.ParseFlow(row[colGroups], x.DefaultCourse); err != nil {
		return p, cell.InColumn(err, "groups")
	}
	if len(p.flows) == 0 {
		return p, required(row[colGroups], "groups", "at least one group")
	}

	sub, ok, err := cell.ParseNullableInt(row[colSubgroup])
	if err != nil {
		return p, cell.InColumn(err, "subgroup")
	}
	if ok {
		if sub < 0 {
			return p, required(row[colSubgroup], "subgroup", "a positive subgroup number")
		}
		p.subgroup = model.Subgroup(sub)
	}

	p.location = cell.Text(row[colLocation])
	p.note = cell.Text(row[colNote])

	if p.start, err = cell.ParseDayAndMonthOrTime(row[colStart]); err != nil {
		return p, cell.InColumn(err, "start")
	}
	if p.end, err = cell.ParseDayAndMonthOrTime(row[colEnd]); err != nil {
		return p, cell.InColumn(err, "end")
	}

	if len(p.pairs) == 0 && (p.start.Kind != cell.Clock || p.end.Kind != cell.Clock) {
		return p, required(row[colPairs], "pairs", "lesson slots or explicit start and end times")
	}
	return p, nil
}

func required(v any, column, expected string) error {
	return &cell.MalformedCellError{Column: column, Value: cell.Text(v), Expected: expected}
}

func containsMissing(missing []*SubjectNotFoundError, course model.Course) bool {
	for _, m := range missing {
		if m.Course == course {
			return true
		}
	}
	return false
}
