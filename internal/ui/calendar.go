package ui

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/store"
)

const icalLineLimit = 75

// ExamCalendar serves the exam timetable as an iCalendar feed that calendar
// apps can subscribe to. Exam times are floating local times.
func (h *Handler) ExamCalendar(w http.ResponseWriter, r *http.Request) {
	filter := store.ScheduleFilter{SemesterID: r.URL.Query().Get("semester")}
	schedules, err := h.store.ExamSchedules.List(r.Context(), filter)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load exam schedule")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="exams.ics"`)
	_, _ = w.Write([]byte(examCalendar(schedules, h.now())))
}

func examCalendar(schedules []store.ExamSchedule, stamp time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(foldLine(s))
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//tuition//exam timetable//EN")
	line("CALSCALE:GREGORIAN")
	for _, s := range schedules {
		line("BEGIN:VEVENT")
		line("UID:" + s.ID + "@tuition")
		line("DTSTAMP:" + stamp.UTC().Format("20060102T150405Z"))
		if start, ok := examStart(s); ok {
			line("DTSTART:" + start.Format("20060102T150405"))
		} else {
			line("DTSTART;VALUE=DATE:" + s.ExamDate.Format("20060102"))
		}
		line("SUMMARY:" + escapeText(s.Subject+" exam"))
		if s.SemesterName != nil && *s.SemesterName != "" {
			line("DESCRIPTION:" + escapeText(*s.SemesterName))
		}
		line("END:VEVENT")
	}
	line("END:VCALENDAR")
	return b.String()
}

// examStart combines the exam date with its HH:MM time.
func examStart(s store.ExamSchedule) (time.Time, bool) {
	var hour, minute int
	if _, err := fmt.Sscanf(s.ExamTime, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	y, m, d := s.ExamDate.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC), true
}

func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)
	return r.Replace(s)
}

// foldLine splits content lines longer than 75 octets without breaking a
// UTF-8 sequence; continuation lines start with a space.
func foldLine(s string) string {
	if len(s) <= icalLineLimit {
		return s
	}
	var b strings.Builder
	limit := icalLineLimit
	for len(s) > limit {
		cut := limit
		for cut > 0 && !startsRune(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		limit = icalLineLimit - 1
	}
	b.WriteString(s)
	return b.String()
}

func startsRune(c byte) bool {
	return c&0xC0 != 0x80
}
