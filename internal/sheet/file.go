package sheet

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FileReader serves ranges from CSV files in a directory, one file per sheet:
// "Schedule!A1:J200" is read from <Dir>/Schedule.csv. The cell part of the
// range is ignored. Used for local development and offline runs.
type FileReader struct {
	Dir string
}

func (r FileReader) Fetch(ctx context.Context, rangeID string) (Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Range: rangeID, Err: err}
	}
	f, err := os.Open(r.Path(rangeID))
	if err != nil {
		return nil, &TransportError{Range: rangeID, Err: err}
	}
	defer f.Close()

	grid, err := DecodeCSV(f)
	if err != nil {
		return nil, &TransportError{Range: rangeID, Err: err}
	}
	return grid, nil
}

// Path returns the file backing rangeID.
func (r FileReader) Path(rangeID string) string {
	name, _ := SplitRange(rangeID)
	name = strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' {
			return '_'
		}
		return c
	}, name)
	return filepath.Join(r.Dir, name+".csv")
}
