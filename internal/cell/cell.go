// Package cell converts single loosely-typed spreadsheet cells into typed
// values. A blank cell is never an error: every parser reports it as absent.
package cell

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedCell matches every *MalformedCellError via errors.Is.
var ErrMalformedCell = errors.New("malformed cell")

// MalformedCellError reports non-blank cell content that does not have the
// expected shape.
type MalformedCellError struct {
	Column   string
	Value    string
	Expected string
}

func (e *MalformedCellError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("column %s: malformed cell %q, expected %s", e.Column, e.Value, e.Expected)
	}
	return fmt.Sprintf("malformed cell %q, expected %s", e.Value, e.Expected)
}

func (e *MalformedCellError) Is(target error) bool {
	return target == ErrMalformedCell
}

// InColumn stamps a column name on a *MalformedCellError; other errors are
// returned unchanged.
func InColumn(err error, column string) error {
	var mce *MalformedCellError
	if errors.As(err, &mce) && mce.Column == "" {
		cp := *mce
		cp.Column = column
		return &cp
	}
	return err
}

func malformed(v any, expected string) error {
	return &MalformedCellError{Value: Text(v), Expected: expected}
}

// Text renders a cell as trimmed text. Integral numbers lose their ".0".
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// IsBlank reports whether the cell carries no content.
func IsBlank(v any) bool {
	return Text(v) == ""
}

// ParseBool reads a readiness flag. Only a true boolean or the literal
// "TRUE" (any case) count as true.
func ParseBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return strings.EqualFold(Text(v), "TRUE")
}

// ParseNullableInt returns ok=false for a blank cell.
func ParseNullableInt(v any) (int, bool, error) {
	s := Text(v)
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, malformed(v, "an integer")
	}
	return n, true, nil
}
