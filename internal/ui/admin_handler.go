package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/tuition/internal/auth"
	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/validation"
)

// remindersUnavailable is shown instead of sending exam reminder emails,
// which need an email service this deployment does not have.
const remindersUnavailable = "Reminder emails are not yet available (requires email service setup)."

type adminStats struct {
	TotalNotes     int64
	TotalDownloads int64
	EmailsSent     int64
	TotalUsers     int64
}

func (h *Handler) AdminOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var stats adminStats

	noteStats, err := h.store.Notes.Stats(ctx)
	if err != nil {
		logError(r, "load note stats", err)
	}
	stats.TotalNotes = noteStats.TotalNotes
	stats.TotalDownloads = noteStats.TotalDownloads

	// Each announcement is counted as one email sent.
	if stats.EmailsSent, err = h.store.Announcements.Count(ctx); err != nil {
		logError(r, "count announcements", err)
	}

	data := h.pageData(w, r, "Admin")
	data["Stats"] = stats
	h.render(w, r, "admin.html", data)
}

// semesterName looks up the display name stored alongside a semester
// reference. An empty id clears the reference.
func (h *Handler) semesterName(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	sem, err := h.store.Semesters.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return sem.Name, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Handler) AdminNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notes, err := h.store.Notes.List(ctx, store.NoteFilter{})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load notes")
		return
	}
	semesters, err := h.store.Semesters.List(ctx)
	if err != nil {
		logError(r, "load semesters", err)
	}

	data := h.pageData(w, r, "Manage notes")
	data["Notes"] = notes
	data["Semesters"] = semesters
	h.render(w, r, "admin_notes.html", data)
}

func noteInput(r *http.Request) validation.NoteInput {
	return validation.NoteInput{
		SubjectName: formValue(r, "subject_name"),
		DriveLink:   formValue(r, "drive_link"),
		SemesterID:  formValue(r, "semester_id"),
		Description: formValue(r, "description"),
	}
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := noteInput(r)
	if err := h.validate.Struct(in); err != nil {
		h.redirect(w, r, "/admin/notes", map[string]string{"error": userMessage(err, "")})
		return
	}
	semName, err := h.semesterName(ctx, in.SemesterID)
	if err != nil {
		h.adminFailure(w, r, "/admin/notes", "load semester", err, "Failed to add note.")
		return
	}

	_, err = h.store.Notes.Create(ctx, store.Note{
		SubjectName:  in.SubjectName,
		DriveLink:    in.DriveLink,
		SemesterID:   optional(in.SemesterID),
		SemesterName: optional(semName),
		Description:  optional(in.Description),
	})
	if err != nil {
		h.adminFailure(w, r, "/admin/notes", "create note", err, "Failed to add note.")
		return
	}
	h.redirect(w, r, "/admin/notes", map[string]string{"status": "Note added."})
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := noteInput(r)
	if err := h.validate.Struct(in); err != nil {
		h.redirect(w, r, "/admin/notes", map[string]string{"error": userMessage(err, "")})
		return
	}
	semName, err := h.semesterName(ctx, in.SemesterID)
	if err != nil {
		h.adminFailure(w, r, "/admin/notes", "load semester", err, "Failed to update note.")
		return
	}

	err = h.store.Notes.Update(ctx, chi.URLParam(r, "id"), store.NotePatch{
		SubjectName:  &in.SubjectName,
		DriveLink:    &in.DriveLink,
		SemesterID:   &in.SemesterID,
		SemesterName: &semName,
		Description:  &in.Description,
	})
	if err != nil {
		h.adminFailure(w, r, "/admin/notes", "update note", err, "Failed to update note.")
		return
	}
	h.redirect(w, r, "/admin/notes", map[string]string{"status": "Note updated."})
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Notes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.adminFailure(w, r, "/admin/notes", "delete note", err, "Failed to delete note.")
		return
	}
	h.redirect(w, r, "/admin/notes", map[string]string{"status": "Note deleted."})
}

func (h *Handler) AdminSemesters(w http.ResponseWriter, r *http.Request) {
	semesters, err := h.store.Semesters.List(r.Context())
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load semesters")
		return
	}
	data := h.pageData(w, r, "Manage semesters")
	data["Semesters"] = semesters
	h.render(w, r, "admin_semesters.html", data)
}

func semesterInput(r *http.Request) validation.SemesterInput {
	return validation.SemesterInput{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
	}
}

func (h *Handler) CreateSemester(w http.ResponseWriter, r *http.Request) {
	in := semesterInput(r)
	if err := h.validate.Struct(in); err != nil {
		h.redirect(w, r, "/admin/semesters", map[string]string{"error": userMessage(err, "")})
		return
	}
	_, err := h.store.Semesters.Create(r.Context(), store.Semester{Name: in.Name, Description: optional(in.Description)})
	if err != nil {
		h.adminFailure(w, r, "/admin/semesters", "create semester", err, "Failed to add semester.")
		return
	}
	h.redirect(w, r, "/admin/semesters", map[string]string{"status": "Semester added."})
}

// UpdateSemester renames a semester. Notes and schedules keep the name they
// were saved with until they are edited.
func (h *Handler) UpdateSemester(w http.ResponseWriter, r *http.Request) {
	in := semesterInput(r)
	if err := h.validate.Struct(in); err != nil {
		h.redirect(w, r, "/admin/semesters", map[string]string{"error": userMessage(err, "")})
		return
	}
	err := h.store.Semesters.Update(r.Context(), chi.URLParam(r, "id"), store.SemesterPatch{Name: &in.Name, Description: &in.Description})
	if err != nil {
		h.adminFailure(w, r, "/admin/semesters", "update semester", err, "Failed to update semester.")
		return
	}
	h.redirect(w, r, "/admin/semesters", map[string]string{"status": "Semester updated."})
}

func (h *Handler) DeleteSemester(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Semesters.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.adminFailure(w, r, "/admin/semesters", "delete semester", err, "Failed to delete semester.")
		return
	}
	h.redirect(w, r, "/admin/semesters", map[string]string{"status": "Semester deleted."})
}

func (h *Handler) AdminTimetable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schedules, err := h.store.ExamSchedules.List(ctx, store.ScheduleFilter{})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load exam schedule")
		return
	}
	semesters, err := h.store.Semesters.List(ctx)
	if err != nil {
		logError(r, "load semesters", err)
	}

	data := h.pageData(w, r, "Manage exam timetable")
	data["Schedules"] = schedules
	data["Semesters"] = semesters
	h.render(w, r, "admin_timetable.html", data)
}

// scheduleInput validates the timetable form and returns the exam date.
func (h *Handler) scheduleInput(r *http.Request) (validation.ScheduleInput, time.Time, error) {
	in := validation.ScheduleInput{
		Subject:    formValue(r, "subject"),
		ExamDate:   formValue(r, "exam_date"),
		ExamTime:   formValue(r, "exam_time"),
		SemesterID: formValue(r, "semester_id"),
	}
	if err := h.validate.Struct(in); err != nil {
		return in, time.Time{}, err
	}
	date, err := time.Parse(validation.DateLayout, in.ExamDate)
	if err != nil {
		return in, time.Time{}, validation.Errors{"exam_date": "exam_date must be a valid date"}
	}
	return in, date, nil
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, date, err := h.scheduleInput(r)
	if err != nil {
		h.redirect(w, r, "/admin/timetable", map[string]string{"error": userMessage(err, "")})
		return
	}
	semName, err := h.semesterName(ctx, in.SemesterID)
	if err != nil {
		h.adminFailure(w, r, "/admin/timetable", "load semester", err, "Failed to add exam.")
		return
	}

	_, err = h.store.ExamSchedules.Create(ctx, store.ExamSchedule{
		Subject:      in.Subject,
		ExamDate:     date,
		ExamTime:     in.ExamTime,
		SemesterID:   optional(in.SemesterID),
		SemesterName: optional(semName),
	})
	if err != nil {
		h.adminFailure(w, r, "/admin/timetable", "create exam schedule", err, "Failed to add exam.")
		return
	}
	h.redirect(w, r, "/admin/timetable", map[string]string{"status": "Exam added."})
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, date, err := h.scheduleInput(r)
	if err != nil {
		h.redirect(w, r, "/admin/timetable", map[string]string{"error": userMessage(err, "")})
		return
	}
	semName, err := h.semesterName(ctx, in.SemesterID)
	if err != nil {
		h.adminFailure(w, r, "/admin/timetable", "load semester", err, "Failed to update exam.")
		return
	}

	err = h.store.ExamSchedules.Update(ctx, chi.URLParam(r, "id"), store.ExamSchedulePatch{
		Subject:      &in.Subject,
		ExamDate:     &date,
		ExamTime:     &in.ExamTime,
		SemesterID:   &in.SemesterID,
		SemesterName: &semName,
	})
	if err != nil {
		h.adminFailure(w, r, "/admin/timetable", "update exam schedule", err, "Failed to update exam.")
		return
	}
	h.redirect(w, r, "/admin/timetable", map[string]string{"status": "Exam updated."})
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ExamSchedules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.adminFailure(w, r, "/admin/timetable", "delete exam schedule", err, "Failed to delete exam.")
		return
	}
	h.redirect(w, r, "/admin/timetable", map[string]string{"status": "Exam deleted."})
}

// SendReminders is a placeholder: nothing is sent and nothing is stored.
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/admin/timetable", map[string]string{"status": remindersUnavailable})
}

func (h *Handler) AdminAnnouncements(w http.ResponseWriter, r *http.Request) {
	// The layout already loads the announcement list for the dropdown.
	h.render(w, r, "admin_announcements.html", h.pageData(w, r, "Announcements"))
}

func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := validation.AnnouncementInput{
		Title:   formValue(r, "title"),
		Message: formValue(r, "message"),
	}
	if err := h.validate.Struct(in); err != nil {
		h.redirect(w, r, "/admin/announcements", map[string]string{"error": userMessage(err, "")})
		return
	}
	id, _ := auth.IdentityFromContext(ctx)

	_, err := h.store.Announcements.Create(ctx, store.Announcement{
		Title:   in.Title,
		Message: in.Message,
		SentBy:  id.Subject,
	})
	if err != nil {
		h.adminFailure(w, r, "/admin/announcements", "create announcement", err, "Failed to publish announcement.")
		return
	}
	h.redirect(w, r, "/admin/announcements", map[string]string{"status": "Announcement published."})
}

func (h *Handler) adminFailure(w http.ResponseWriter, r *http.Request, path, op string, err error, fallback string) {
	logError(r, op, err)
	h.redirect(w, r, path, map[string]string{"error": userMessage(err, fallback)})
}
