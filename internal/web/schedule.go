package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schedbot/internal/cell"
	"schedbot/internal/ics"
	appLog "schedbot/internal/log"
	"schedbot/internal/model"
)

const (
	defaultOccurrenceDays = 7
	maxOccurrenceDays     = 120
)

// itemDTO is a flattened, display-ready view of a schedule item.
type itemDTO struct {
	Subject   string `json:"subject"`
	Course    int    `json:"course"`
	Semester  int    `json:"semester"`
	Group     string `json:"group"`
	Subgroup  int    `json:"subgroup,omitempty"`
	Day       string `json:"day"`
	Pair      int    `json:"pair,omitempty"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	Parity    string `json:"parity"`
	ValidFrom string `json:"valid_from,omitempty"`
	ValidTo   string `json:"valid_to,omitempty"`
	Location  string `json:"location,omitempty"`
	Note      string `json:"note,omitempty"`
}

func newItemDTO(it model.ScheduleItem) itemDTO {
	d := itemDTO{
		Subject:  it.Subject.Name,
		Course:   int(it.Subject.Course),
		Semester: int(it.Subject.Semester),
		Group:    string(it.Group),
		Subgroup: int(it.Subgroup),
		Day:      it.EventTime.DayOfWeek.String(),
		Pair:     int(it.EventTime.Pair),
		Parity:   it.EventTime.WeekParity.String(),
		Location: it.Location,
		Note:     it.Note,
	}
	if hm, ok := it.EventTime.Start(); ok {
		d.Start = hm.String()
	}
	if hm, ok := it.EventTime.End(); ok {
		d.End = hm.String()
	}
	if it.EventTime.StartDay != nil {
		d.ValidFrom = it.EventTime.StartDay.String()
	}
	if it.EventTime.EndDay != nil {
		d.ValidTo = it.EventTime.EndDay.String()
	}
	return d
}

func itemDTOs(items []model.ScheduleItem) []itemDTO {
	out := make([]itemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, newItemDTO(it))
	}
	return out
}

// itemsResponse is the JSON response shape of every item query.
type itemsResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	Now        time.Time `json:"now"`
	Items      []itemDTO `json:"items"`
}

func (s *Server) writeItems(w http.ResponseWriter, snapshotID string, items []model.ScheduleItem) {
	writeJSON(w, http.StatusOK, itemsResponse{
		SnapshotID: snapshotID,
		Now:        s.engine.Now(),
		Items:      itemDTOs(items),
	})
}

func parseCourse(v string) (model.Course, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("course must be a positive integer, got %q", v)
	}
	return model.Course(n), nil
}

// handleCourse lists the lessons of one course that apply today.
//
// GET /api/schedule?course=2
func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	course, err := parseCourse(r.URL.Query().Get("course"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}
	s.writeItems(w, snap.ID.String(), s.engine.GetByCourse(course))
}

// handleGroup lists the lessons of one group.
//
// GET /api/schedule/group?course=2&group=1
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	course, err := parseCourse(q.Get("course"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group := strings.TrimSpace(q.Get("group"))
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}
	s.writeItems(w, snap.ID.String(), s.engine.GetByGroup(course, model.Group(group)))
}

// handleDay lists the lessons held on a weekday, optionally narrowed to a
// start or end time.
//
// GET /api/schedule/day?day=tuesday[&starts=10:40|&ends=12:10]
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, ok, err := cell.ParseDay(q.Get("day"))
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "day must be a weekday name or 1..7")
		return
	}
	starts, hasStarts, err := cell.ParseHourAndMinute(q.Get("starts"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "starts must be HH:MM")
		return
	}
	ends, hasEnds, err := cell.ParseHourAndMinute(q.Get("ends"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ends must be HH:MM")
		return
	}
	if hasStarts && hasEnds {
		writeError(w, http.StatusBadRequest, "starts and ends are mutually exclusive")
		return
	}

	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}
	var items []model.ScheduleItem
	switch {
	case hasStarts:
		items = s.engine.GetByDayOfWeekAndStartsAt(day, starts)
	case hasEnds:
		items = s.engine.GetByDayOfWeekAndEndsAt(day, ends)
	default:
		items = s.engine.GetByDayOfWeek(day)
	}
	s.writeItems(w, snap.ID.String(), items)
}

// holidaysResponse is the JSON response shape for /api/holidays.
type holidaysResponse struct {
	SnapshotID string   `json:"snapshot_id"`
	Holidays   []string `json:"holidays"`
}

func (s *Server) handleHolidays(w http.ResponseWriter, _ *http.Request) {
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}
	days := s.engine.GetHolidays()
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	writeJSON(w, http.StatusOK, holidaysResponse{SnapshotID: snap.ID.String(), Holidays: out})
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	InstanceKey string    `json:"instance_key"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	itemDTO
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Occurrences    []occurrenceDTO `json:"occurrences"`
	TruncatedItems []string        `json:"truncated_items,omitempty"`
	RangeStart     time.Time       `json:"range_start"`
	RangeEnd       time.Time       `json:"range_end"`
	TimeZone       string          `json:"timezone"`
}

// handleOccurrences returns dated lessons from the start of today.
//
// GET /api/occurrences?days=7[&course=2[&group=1]]
//   - days: window length, 1..120 (default 7)
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), defaultOccurrenceDays)
	if days < 1 || days > maxOccurrenceDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be within 1..%d", maxOccurrenceDays))
		return
	}
	var (
		course model.Course
		err    error
	)
	if v := q.Get("course"); v != "" {
		if course, err = parseCourse(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	group := model.Group(strings.TrimSpace(q.Get("group")))

	if s.requireSnapshot(w) == nil {
		return
	}

	now := s.engine.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, days)

	res, err := s.engine.Upcoming(from, to)
	if err != nil {
		appLog.Error("api occurrences: expand failed", err, "days", days)
		writeError(w, http.StatusInternalServerError, "failed to expand schedule")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		if course != 0 && occ.Item.Subject.Course != course {
			continue
		}
		if group != "" && occ.Item.Group != group {
			continue
		}
		dtos = append(dtos, occurrenceDTO{
			InstanceKey: occ.InstanceKey,
			Start:       occ.Start,
			End:         occ.End,
			itemDTO:     newItemDTO(occ.Item),
		})
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences:    dtos,
		TruncatedItems: res.TruncatedItems,
		RangeStart:     from,
		RangeEnd:       to,
		TimeZone:       now.Location().String(),
	})
}

// handleICS serves a subscribable iCalendar feed of a course or group.
// Unlike the JSON queries the feed holds every lesson of the snapshot, with
// validity windows and holidays expressed as RRULE bounds and EXDATEs.
//
// GET /api/schedule.ics?course=2[&group=1]
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	course, err := parseCourse(q.Get("course"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group := model.Group(strings.TrimSpace(q.Get("group")))

	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}

	items := make([]model.ScheduleItem, 0)
	for _, it := range snap.Items {
		if it.Subject.Course != course {
			continue
		}
		if group != "" && it.Group != group {
			continue
		}
		items = append(items, it)
	}

	name := fmt.Sprintf("Course %d", course)
	if group != "" {
		name += ", group " + string(group)
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, items, s.engine.ExportConfig(name)); err != nil {
		appLog.Error("api ics: export failed", err, "course", int(course), "group", string(group))
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
