package model

// Pair is a timetable lesson slot of the day, starting at 1. Zero means none.
type Pair int

// Span is the start and end of a lesson.
type Span struct {
	Start HourAndMinute `json:"start"`
	End   HourAndMinute `json:"end"`
}

var pairSpans = map[Pair]Span{
	1: {HourAndMinute{9, 0}, HourAndMinute{10, 30}},
	2: {HourAndMinute{10, 40}, HourAndMinute{12, 10}},
	3: {HourAndMinute{12, 50}, HourAndMinute{14, 20}},
	4: {HourAndMinute{14, 30}, HourAndMinute{16, 0}},
	5: {HourAndMinute{16, 10}, HourAndMinute{17, 40}},
	6: {HourAndMinute{17, 50}, HourAndMinute{19, 20}},
	7: {HourAndMinute{19, 30}, HourAndMinute{21, 0}},
}

// MaxPair is the last lesson slot of the day.
const MaxPair Pair = 7

// Span returns the clock times of the pair.
func (p Pair) Span() (Span, bool) {
	s, ok := pairSpans[p]
	return s, ok
}

// Valid reports whether p is a known lesson slot.
func (p Pair) Valid() bool {
	_, ok := pairSpans[p]
	return ok
}
