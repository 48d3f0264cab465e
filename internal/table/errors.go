package table

import (
	"errors"
	"fmt"

	"schedbot/internal/model"
)

// ErrNotReady describes a range whose readiness flag is not set. Parse never
// returns it; it exists so callers can log the state uniformly.
var ErrNotReady = errors.New("range not ready")

// RowError is a row that was dropped because one of its cells is malformed.
type RowError struct {
	Range string
	// Row is 1-based, as shown by the spreadsheet UI.
	Row int
	Err error
}

func (e *RowError) Error() string {
	if e.Range != "" {
		return fmt.Sprintf("%s row %d: %v", e.Range, e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// SubjectNotFoundError notes a row that names a subject missing from the
// catalog. The affected expansion is skipped; it is informational only.
type SubjectNotFoundError struct {
	Row      int
	Course   model.Course
	Semester model.Semester
	Name     string
}

func (e *SubjectNotFoundError) Error() string {
	return fmt.Sprintf("row %d: subject %q not found for course %d semester %d", e.Row, e.Name, e.Course, e.Semester)
}
