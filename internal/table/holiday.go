package table

import (
	"slices"
	"time"

	"schedbot/internal/cell"
	"schedbot/internal/model"
	"schedbot/internal/sheet"
)

// DefaultHolidayHeaderRows is the title row of the holiday range.
const DefaultHolidayHeaderRows = 1

// ParseHolidays reads month | days rows ("Ноябрь | 3-4") into individual
// dates, sorted and de-duplicated. headerRows < 0 means none; zero means
// DefaultHolidayHeaderRows.
func ParseHolidays(grid sheet.Grid, rangeID string, headerRows int) ([]model.DayAndMonth, []*RowError) {
	switch {
	case headerRows < 0:
		headerRows = 0
	case headerRows == 0:
		headerRows = DefaultHolidayHeaderRows
	}

	var (
		out  []model.DayAndMonth
		errs []*RowError
	)
	for i := headerRows; i < len(grid); i++ {
		rowErr := func(err error) {
			errs = append(errs, &RowError{Range: rangeID, Row: i + 1, Err: err})
		}

		month, ok, err := cell.ParseMonth(grid.Cell(i, 0))
		if err != nil {
			rowErr(cell.InColumn(err, "month"))
			continue
		}
		if !ok {
			continue
		}
		days, err := cell.ParseRange(grid.Cell(i, 1))
		if err != nil {
			rowErr(cell.InColumn(err, "days"))
			continue
		}
		if len(days) == 0 {
			rowErr(required(grid.Cell(i, 1), "days", "a day or day range"))
			continue
		}
		last := time.Date(2024, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if days[0] < 1 || days[len(days)-1] > last {
			rowErr(required(grid.Cell(i, 1), "days", "days that exist in the month"))
			continue
		}
		for _, d := range days {
			out = append(out, model.DayAndMonth{Day: d, Month: month})
		}
	}

	slices.SortFunc(out, model.DayAndMonth.Compare)
	return slices.Compact(out), errs
}
