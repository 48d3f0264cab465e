package cell

import (
	"slices"
	"strconv"
	"strings"

	"schedbot/internal/model"
)

// maxRangeSpan bounds a single "a-b" part so a typo like "1-1000" cannot
// explode a row.
const maxRangeSpan = 64

// ParseRange reads "1-3", "2" or lists such as "1-2,4" into ascending
// integers. Duplicates are dropped. A blank cell yields nil.
func ParseRange(v any) ([]int, error) {
	s := Text(v)
	if s == "" {
		return nil, nil
	}
	seen := make(map[int]struct{})
	out := make([]int, 0, 4)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, ok := parseSpan(part)
		if !ok {
			return nil, malformed(v, `a number or range like "1-3"`)
		}
		for n := lo; n <= hi; n++ {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, malformed(v, `a number or range like "1-3"`)
	}
	slices.Sort(out)
	return out, nil
}

func parseSpan(s string) (int, int, bool) {
	s = strings.ReplaceAll(s, "–", "-")
	lo, hi, isRange := strings.Cut(s, "-")
	a, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || a < 0 {
		return 0, 0, false
	}
	if !isRange {
		return a, a, true
	}
	b, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || b < a || b-a >= maxRangeSpan {
		return 0, 0, false
	}
	return a, b, true
}

// ParseFlow reads the group cell of a row. Tokens are separated by commas,
// semicolons or whitespace. A "course/group" token names its own course; a
// bare token ("A", "3" or "1-3") uses defaultCourse. A bare token without a
// default course is malformed.
func ParseFlow(v any, defaultCourse model.Course) ([]model.Flow, error) {
	s := Text(v)
	if s == "" {
		return nil, nil
	}
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})

	seen := make(map[model.Flow]struct{})
	out := make([]model.Flow, 0, len(tokens))
	add := func(f model.Flow) {
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	for _, tok := range tokens {
		course := defaultCourse
		groupPart := tok
		if c, g, ok := strings.Cut(tok, "/"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(c))
			if err != nil || n <= 0 || strings.TrimSpace(g) == "" {
				return nil, malformed(v, `"course/group" tokens`)
			}
			course = model.Course(n)
			groupPart = strings.TrimSpace(g)
		} else if defaultCourse <= 0 {
			return nil, malformed(v, `"course/group" tokens`)
		}

		if lo, hi, ok := parseSpan(groupPart); ok {
			for n := lo; n <= hi; n++ {
				add(model.Flow{Course: course, Group: model.Group(strconv.Itoa(n))})
			}
			continue
		}
		if strings.ContainsAny(groupPart, "/") {
			return nil, malformed(v, `"course/group" tokens`)
		}
		add(model.Flow{Course: course, Group: model.Group(groupPart)})
	}
	return out, nil
}
