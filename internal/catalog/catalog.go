// Package catalog provides the subject catalog consulted while expanding
// timetable rows.
package catalog

import (
	"context"
	"slices"
	"strings"

	"schedbot/internal/model"
)

// Source returns the known subjects.
type Source interface {
	Subjects(ctx context.Context, course model.Course) ([]model.Subject, error)
	AllSubjects(ctx context.Context) ([]model.Subject, error)
}

type key struct {
	course   model.Course
	semester model.Semester
	name     string
}

// Index is an immutable in-memory lookup by (course, semester, name). Names
// are matched case-insensitively after trimming.
type Index struct {
	byKey map[key]model.Subject
}

// NewIndex builds an Index. Later duplicates are ignored.
func NewIndex(subjects []model.Subject) *Index {
	ix := &Index{byKey: make(map[key]model.Subject, len(subjects))}
	for _, s := range subjects {
		k := key{s.Course, s.Semester, normalizeName(s.Name)}
		if _, dup := ix.byKey[k]; dup {
			continue
		}
		ix.byKey[k] = s
	}
	return ix
}

// Lookup finds a subject.
func (ix *Index) Lookup(course model.Course, semester model.Semester, name string) (model.Subject, bool) {
	if ix == nil {
		return model.Subject{}, false
	}
	s, ok := ix.byKey[key{course, semester, normalizeName(name)}]
	return s, ok
}

// Len returns the number of indexed subjects.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byKey)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Static is a fixed catalog, typically from the config file.
type Static []model.Subject

func (s Static) Subjects(_ context.Context, course model.Course) ([]model.Subject, error) {
	out := make([]model.Subject, 0)
	for _, sub := range s {
		if sub.Course == course {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s Static) AllSubjects(_ context.Context) ([]model.Subject, error) {
	return slices.Clone([]model.Subject(s)), nil
}
