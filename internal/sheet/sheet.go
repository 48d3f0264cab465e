// Package sheet reads rectangular ranges of a published spreadsheet and
// decodes them into grids of loosely-typed cell values.
package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Grid is a decoded range: rows of cells holding string, bool, float64 or nil.
type Grid [][]any

// Cell returns the value at (row, col), or nil outside the grid.
func (g Grid) Cell(row, col int) any {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return nil
	}
	return g[row][col]
}

// Reader fetches one logical range, e.g. "Schedule!A1:J200".
type Reader interface {
	Fetch(ctx context.Context, rangeID string) (Grid, error)
}

// ErrTransport matches every *TransportError via errors.Is.
var ErrTransport = errors.New("sheet transport failed")

// TransportError means the range could not be fetched at all.
type TransportError struct {
	Range string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch range %q: %v", e.Range, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// SplitRange splits "Sheet!A1:J200" into its sheet name and cell range.
// A range without '!' is treated as a bare sheet name.
func SplitRange(rangeID string) (sheetName, cells string) {
	if name, cells, ok := strings.Cut(rangeID, "!"); ok {
		return strings.Trim(name, "'"), cells
	}
	return rangeID, ""
}

// DecodeCSV decodes a CSV export. "TRUE" and "FALSE" become booleans, blank
// cells become nil and everything else stays a string.
func DecodeCSV(r io.Reader) (Grid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	grid := make(Grid, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = normalize(v)
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// DecodeHTML decodes the first table of an HTML export. Rows without <td>
// cells (column letter headers) are skipped, as are <th> row numbers.
func DecodeHTML(r io.Reader) (Grid, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode html: %w", err)
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("decode html: no table found")
	}

	grid := make(Grid, 0)
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}
		row := make([]any, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			row = append(row, normalize(td.Text()))
		})
		grid = append(grid, row)
	})
	return grid, nil
}

func normalize(v string) any {
	v = strings.TrimSpace(strings.ReplaceAll(v, "\u00a0", " "))
	switch v {
	case "":
		return nil
	case "TRUE":
		return true
	case "FALSE":
		return false
	default:
		return v
	}
}
