package ui

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/tuition/internal/auth"
	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/metrics"
	"github.com/jw6ventures/tuition/internal/prefs"
	"github.com/jw6ventures/tuition/internal/store"
)

const (
	upcomingLimit  = 5
	downloadFailed = "Failed to update download count."
)

// Home shows the landing page. The newest announcement pops up once per
// browser and is marked seen as soon as it is shown.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dedup := prefs.NewDeduplicator(h.prefs(w, r))
	latest, err := h.store.Announcements.Latest(ctx)
	if err != nil {
		logError(r, "load latest announcement", err)
	}
	var popup *store.Announcement
	if latest != nil && dedup.ShouldShow(latest.ID) {
		popup = latest
		dedup.MarkSeen(latest.ID)
	}

	data := h.pageData(w, r, "Home")
	data["Popup"] = popup

	semesters, err := h.store.Semesters.List(ctx)
	if err != nil {
		logError(r, "load semesters", err)
	}
	data["Semesters"] = semesters

	stats, err := h.store.Notes.Stats(ctx)
	if err != nil {
		logError(r, "load note stats", err)
	}
	data["NoteCount"] = stats.TotalNotes
	data["Upcoming"] = h.upcomingExams(r)

	h.render(w, r, "home.html", data)
}

// upcomingExams lists exams from today on, soonest first.
func (h *Handler) upcomingExams(r *http.Request) []store.ExamSchedule {
	schedules, err := h.store.ExamSchedules.List(r.Context(), store.ScheduleFilter{})
	if err != nil {
		logError(r, "load exam schedules", err)
		return nil
	}
	y, m, d := h.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	var upcoming []store.ExamSchedule
	for _, s := range schedules {
		if s.ExamDate.Before(today) {
			continue
		}
		upcoming = append(upcoming, s)
		if len(upcoming) == upcomingLimit {
			break
		}
	}
	return upcoming
}

// Notes lists every note, or only one semester's when the route carries a
// semester id.
func (h *Handler) Notes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	semesterID := chi.URLParam(r, "id")

	semesters, err := h.store.Semesters.List(ctx)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load semesters")
		return
	}

	var current *store.Semester
	if semesterID != "" {
		for i := range semesters {
			if semesters[i].ID == semesterID {
				current = &semesters[i]
			}
		}
		if current == nil {
			httperrors.NotFound(w, r)
			return
		}
	}

	notes, err := h.store.Notes.List(ctx, store.NoteFilter{SemesterID: semesterID})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load notes")
		return
	}

	data := h.pageData(w, r, "Notes")
	data["Notes"] = notes
	data["Semesters"] = semesters
	data["Semester"] = current
	h.render(w, r, "notes.html", data)
}

// DownloadNote counts the download and sends the browser to the drive link.
// The count is read, incremented and written back; concurrent downloads of
// the same note may undercount. When the count cannot be written the
// visitor is sent back to the notes page with a notice instead.
func (h *Handler) DownloadNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	note, err := h.store.Notes.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		httperrors.NotFound(w, r)
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load note")
		return
	}

	link, err := url.Parse(note.DriveLink)
	if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
		httperrors.BadRequestError(w, r, errors.New("unsafe drive link"), "this note has no valid link")
		return
	}

	next := note.Downloads + 1
	if err := h.store.Notes.Update(ctx, id, store.NotePatch{Downloads: &next}); err != nil {
		logError(r, "record download", err)
		back := "/notes"
		if v := r.FormValue("next"); v != "" {
			back = safeNext(v)
		}
		h.redirect(w, r, back, map[string]string{"error": userMessage(err, downloadFailed)})
		return
	}
	metrics.NoteDownloaded()
	http.Redirect(w, r, link.String(), http.StatusFound)
}

// Schedule shows the exam timetable, optionally for one semester.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := store.ScheduleFilter{SemesterID: r.URL.Query().Get("semester")}

	schedules, err := h.store.ExamSchedules.List(ctx, filter)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load exam schedule")
		return
	}
	semesters, err := h.store.Semesters.List(ctx)
	if err != nil {
		logError(r, "load semesters", err)
	}

	data := h.pageData(w, r, "Exam schedule")
	data["Schedules"] = schedules
	data["Semesters"] = semesters
	h.render(w, r, "schedule.html", data)
}

// AuthPage offers sign-in, or forwards a signed-in visitor to the page for
// their role.
func (h *Handler) AuthPage(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		if h.roles != nil && h.roles.ResolveRole(r.Context(), *id) == auth.RoleAdmin {
			http.Redirect(w, r, "/admin", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, "auth.html", h.pageData(w, r, "Sign in"))
}

func (h *Handler) ToggleDarkMode(w http.ResponseWriter, r *http.Request) {
	p := h.prefs(w, r)
	p.SetDarkMode(!p.DarkMode())
	http.Redirect(w, r, safeNext(r.FormValue("next")), http.StatusFound)
}

func (h *Handler) ToggleNotifications(w http.ResponseWriter, r *http.Request) {
	p := h.prefs(w, r)
	on := !p.NotificationsEnabled()
	p.SetNotificationsEnabled(on)
	status := "Exam notifications turned off."
	if on {
		status = "Exam notifications turned on."
	}
	h.redirect(w, r, safeNext(r.FormValue("next")), map[string]string{"status": status})
}
