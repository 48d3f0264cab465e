package cell

import (
	"strconv"
	"strings"
	"time"

	"schedbot/internal/model"
)

// Kind tags the content of a DateOrTime.
type Kind int

const (
	None Kind = iota
	Date
	Clock
)

// DateOrTime is a cell that holds either a calendar date ("DD.MM") or a clock
// time ("HH:MM"). The shape is decided once, at parse time.
type DateOrTime struct {
	Kind Kind
	Date model.DayAndMonth
	Time model.HourAndMinute
}

// DayAndMonth returns the date, or nil when the cell held something else.
func (d DateOrTime) DayAndMonth() *model.DayAndMonth {
	if d.Kind != Date {
		return nil
	}
	v := d.Date
	return &v
}

// HourAndMinute returns the time, or nil when the cell held something else.
func (d DateOrTime) HourAndMinute() *model.HourAndMinute {
	if d.Kind != Clock {
		return nil
	}
	v := d.Time
	return &v
}

// ParseDayAndMonthOrTime dispatches on the separator: ':' means a clock
// time, '.' means a date. "DD.MM.YYYY" is accepted and the year dropped.
func ParseDayAndMonthOrTime(v any) (DateOrTime, error) {
	s := Text(v)
	// A number cell holds DD.MM; Text would drop the month's trailing zero.
	if f, ok := v.(float64); ok {
		s = strconv.FormatFloat(f, 'f', 2, 64)
	}
	if s == "" {
		return DateOrTime{}, nil
	}
	switch {
	case strings.Contains(s, ":"):
		hm, ok := parseClock(s)
		if !ok {
			return DateOrTime{}, malformed(v, `a time "HH:MM"`)
		}
		return DateOrTime{Kind: Clock, Time: hm}, nil
	case strings.Contains(s, "."):
		dm, ok := parseDate(s)
		if !ok {
			return DateOrTime{}, malformed(v, `a date "DD.MM"`)
		}
		return DateOrTime{Kind: Date, Date: dm}, nil
	default:
		return DateOrTime{}, malformed(v, `a date "DD.MM" or a time "HH:MM"`)
	}
}

// ParseHourAndMinute reads "HH:MM". A blank cell yields ok=false.
func ParseHourAndMinute(v any) (model.HourAndMinute, bool, error) {
	s := Text(v)
	if s == "" {
		return model.HourAndMinute{}, false, nil
	}
	hm, ok := parseClock(s)
	if !ok {
		return model.HourAndMinute{}, false, malformed(v, `a time "HH:MM"`)
	}
	return hm, true, nil
}

func parseClock(s string) (model.HourAndMinute, bool) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return model.HourAndMinute{}, false
	}
	// Sheets sometimes exports "10:40:00".
	m, _, _ = strings.Cut(m, ":")
	hour, err1 := strconv.Atoi(strings.TrimSpace(h))
	minute, err2 := strconv.Atoi(strings.TrimSpace(m))
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return model.HourAndMinute{}, false
	}
	return model.HourAndMinute{Hour: hour, Minute: minute}, true
}

func parseDate(s string) (model.DayAndMonth, bool) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return model.DayAndMonth{}, false
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return model.DayAndMonth{}, false
	}
	if day < 1 || day > daysIn(time.Month(month)) {
		return model.DayAndMonth{}, false
	}
	return model.DayAndMonth{Day: day, Month: time.Month(month)}, true
}

// daysIn allows 29 February since the year is unknown.
func daysIn(m time.Month) int {
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseParity maps odd/even tokens. Anything else, including blank, means
// every week.
func ParseParity(v any) model.WeekParity {
	s := strings.ToLower(Text(v))
	s = strings.ReplaceAll(s, "ё", "е")
	switch {
	case s == "":
		return model.Both
	case s == "odd" || s == "1" || strings.HasPrefix(s, "нечет") || s == "н":
		return model.Odd
	case s == "even" || s == "2" || strings.HasPrefix(s, "чет") || s == "ч":
		return model.Even
	default:
		return model.Both
	}
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday, "понедельник": time.Monday, "пн": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "вторник": time.Tuesday, "вт": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "среда": time.Wednesday, "ср": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "четверг": time.Thursday, "чт": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "пятница": time.Friday, "пт": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "суббота": time.Saturday, "сб": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday, "воскресенье": time.Sunday, "вс": time.Sunday,
}

// ParseDay reads a weekday name (English or Russian, full or short) or a
// number 1..7 with Monday as 1.
func ParseDay(v any) (time.Weekday, bool, error) {
	s := strings.ToLower(Text(v))
	if s == "" {
		return 0, false, nil
	}
	if d, ok := weekdayNames[strings.TrimSuffix(s, ".")]; ok {
		return d, true, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 7 {
		return time.Weekday(n % 7), true, nil
	}
	return 0, false, malformed(v, "a day of week")
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "январь": time.January, "янв": time.January,
	"february": time.February, "feb": time.February, "февраль": time.February, "фев": time.February,
	"march": time.March, "mar": time.March, "март": time.March, "мар": time.March,
	"april": time.April, "apr": time.April, "апрель": time.April, "апр": time.April,
	"may": time.May, "май": time.May,
	"june": time.June, "jun": time.June, "июнь": time.June, "июн": time.June,
	"july": time.July, "jul": time.July, "июль": time.July, "июл": time.July,
	"august": time.August, "aug": time.August, "август": time.August, "авг": time.August,
	"september": time.September, "sep": time.September, "сентябрь": time.September, "сен": time.September,
	"october": time.October, "oct": time.October, "октябрь": time.October, "окт": time.October,
	"november": time.November, "nov": time.November, "ноябрь": time.November, "ноя": time.November,
	"december": time.December, "dec": time.December, "декабрь": time.December, "дек": time.December,
}

// ParseMonth reads a month name or number 1..12.
func ParseMonth(v any) (time.Month, bool, error) {
	s := strings.ToLower(Text(v))
	if s == "" {
		return 0, false, nil
	}
	if m, ok := monthNames[strings.TrimSuffix(s, ".")]; ok {
		return m, true, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), true, nil
	}
	return 0, false, malformed(v, "a month")
}
