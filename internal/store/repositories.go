package store

import (
	"context"
	"time"
)

// Collection names, used as table names and in error reports.
const (
	CollectionNotes         = "notes"
	CollectionSemesters     = "semesters"
	CollectionExamSchedules = "exam_schedules"
	CollectionAnnouncements = "announcements"
	CollectionChatMessages  = "chat_messages"
	CollectionAdmins        = "admins"
)

// NoteFilter narrows Notes.List. An empty SemesterID lists every note.
type NoteFilter struct {
	SemesterID string
}

// NotePatch carries the fields to change. Nil fields are left untouched; an
// empty string clears an optional field.
type NotePatch struct {
	SubjectName  *string
	DriveLink    *string
	Downloads    *int64
	SemesterID   *string
	SemesterName *string
	Description  *string
}

// NoteRepository is the notes collection, ordered by subject name.
type NoteRepository interface {
	List(ctx context.Context, filter NoteFilter) ([]Note, error)
	Get(ctx context.Context, id string) (*Note, error)
	Create(ctx context.Context, note Note) (*Note, error)
	Update(ctx context.Context, id string, patch NotePatch) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (NoteStats, error)
}

type SemesterPatch struct {
	Name        *string
	Description *string
}

// SemesterRepository is the semesters collection, ordered by name. Deleting a
// semester leaves dependent notes and schedules pointing at it.
type SemesterRepository interface {
	List(ctx context.Context) ([]Semester, error)
	Get(ctx context.Context, id string) (*Semester, error)
	Create(ctx context.Context, semester Semester) (*Semester, error)
	Update(ctx context.Context, id string, patch SemesterPatch) error
	Delete(ctx context.Context, id string) error
}

type ScheduleFilter struct {
	SemesterID string
}

type ExamSchedulePatch struct {
	Subject      *string
	ExamDate     *time.Time
	ExamTime     *string
	SemesterID   *string
	SemesterName *string
}

// ExamScheduleRepository is the exam timetable, ordered by date then time.
type ExamScheduleRepository interface {
	List(ctx context.Context, filter ScheduleFilter) ([]ExamSchedule, error)
	Get(ctx context.Context, id string) (*ExamSchedule, error)
	Create(ctx context.Context, schedule ExamSchedule) (*ExamSchedule, error)
	Update(ctx context.Context, id string, patch ExamSchedulePatch) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementRepository lists newest first. Create stamps CreatedAt with the
// writer's clock.
type AnnouncementRepository interface {
	List(ctx context.Context) ([]Announcement, error)
	Latest(ctx context.Context) (*Announcement, error)
	Create(ctx context.Context, announcement Announcement) (*Announcement, error)
	Count(ctx context.Context) (int64, error)
}

// ChatMessageRepository is append-only. ListThread returns messages oldest
// first; Create stamps CreatedAt with the writer's clock.
type ChatMessageRepository interface {
	ListThread(ctx context.Context, key ThreadKey) ([]ChatMessage, error)
	Create(ctx context.Context, msg ChatMessage) (*ChatMessage, error)
}

// AdminRepository is the admin allow-list keyed by lower-cased email.
type AdminRepository interface {
	Exists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
}
