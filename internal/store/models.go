package store

import "time"

// Note is a study document linked from an external drive.
type Note struct {
	ID           string
	SubjectName  string
	DriveLink    string
	Downloads    int64
	SemesterID   *string
	SemesterName *string
	Description  *string
}

// Semester groups notes and exam schedules.
type Semester struct {
	ID          string
	Name        string
	Description *string
}

// ExamSchedule is one timetable entry. ExamDate carries only the calendar date.
type ExamSchedule struct {
	ID           string
	Subject      string
	ExamDate     time.Time
	ExamTime     string
	SemesterID   *string
	SemesterName *string
}

// Announcement is immutable after creation.
type Announcement struct {
	ID        string
	Title     string
	Message   string
	SentBy    string
	CreatedAt time.Time
}

// ChatMessage belongs to exactly one thread, identified by its ThreadKey.
type ChatMessage struct {
	ID          string
	Content     string
	UserID      string
	UserName    string
	IsGeneral   bool
	SubjectName *string
	CreatedAt   time.Time
}

// Thread returns the key of the thread the message was posted to.
func (m ChatMessage) Thread() ThreadKey {
	if m.IsGeneral {
		return GeneralThread()
	}
	if m.SubjectName == nil {
		return ThreadKey{}
	}
	return SubjectThread(*m.SubjectName)
}

// Admin is an entry of the admin allow-list, keyed by email.
type Admin struct {
	Email     string
	CreatedAt time.Time
}

// NoteStats aggregates the notes collection for the admin dashboard.
type NoteStats struct {
	TotalNotes     int64
	TotalDownloads int64
}
