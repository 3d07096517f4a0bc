// Package memstore keeps every collection in process memory. It backs
// APP_STORE=memory and the handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/tuition/internal/store"
)

// DB holds the tables shared by the repositories.
type DB struct {
	mu  sync.RWMutex
	now func() time.Time

	notes         map[string]*store.Note
	semesters     map[string]*store.Semester
	schedules     map[string]*store.ExamSchedule
	announcements []store.Announcement
	chat          []store.ChatMessage
	admins        map[string]time.Time
}

// New returns a Store whose repositories share one in-memory DB.
func New() *store.Store {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injectable clock for creation timestamps.
func NewWithClock(now func() time.Time) *store.Store {
	db := &DB{
		now:       now,
		notes:     map[string]*store.Note{},
		semesters: map[string]*store.Semester{},
		schedules: map[string]*store.ExamSchedule{},
		admins:    map[string]time.Time{},
	}
	return &store.Store{
		Notes:         &noteRepository{db: db},
		Semesters:     &semesterRepository{db: db},
		ExamSchedules: &scheduleRepository{db: db},
		Announcements: &announcementRepository{db: db},
		ChatMessages:  &chatRepository{db: db},
		Admins:        &adminRepository{db: db},
	}
}

type noteRepository struct {
	db *DB
}

func (repo *noteRepository) List(ctx context.Context, filter store.NoteFilter) ([]store.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notes := make([]store.Note, 0, len(repo.db.notes))
	for _, n := range repo.db.notes {
		if filter.SemesterID != "" && (n.SemesterID == nil || *n.SemesterID != filter.SemesterID) {
			continue
		}
		notes = append(notes, cloneNote(*n))
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].SubjectName != notes[j].SubjectName {
			return notes[i].SubjectName < notes[j].SubjectName
		}
		return notes[i].ID < notes[j].ID
	})
	return notes, nil
}

func (repo *noteRepository) Get(ctx context.Context, id string) (*store.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	n, ok := repo.db.notes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	note := cloneNote(*n)
	return &note, nil
}

func (repo *noteRepository) Create(ctx context.Context, note store.Note) (*store.Note, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	note = cloneNote(note)
	note.ID = uuid.NewString()
	note.SemesterID = optional(note.SemesterID)
	note.SemesterName = optional(note.SemesterName)
	note.Description = optional(note.Description)
	repo.db.notes[note.ID] = &note
	out := cloneNote(note)
	return &out, nil
}

func (repo *noteRepository) Update(ctx context.Context, id string, patch store.NotePatch) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.notes[id]
	if !ok {
		return store.NewWriteError(store.CollectionNotes, "update", store.ErrNotFound)
	}
	if patch.SubjectName != nil {
		n.SubjectName = *patch.SubjectName
	}
	if patch.DriveLink != nil {
		n.DriveLink = *patch.DriveLink
	}
	if patch.Downloads != nil {
		n.Downloads = *patch.Downloads
	}
	if patch.SemesterID != nil {
		n.SemesterID = optional(patch.SemesterID)
	}
	if patch.SemesterName != nil {
		n.SemesterName = optional(patch.SemesterName)
	}
	if patch.Description != nil {
		n.Description = optional(patch.Description)
	}
	return nil
}

func (repo *noteRepository) Delete(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.notes, id)
	return nil
}

func (repo *noteRepository) Stats(ctx context.Context) (store.NoteStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stats := store.NoteStats{TotalNotes: int64(len(repo.db.notes))}
	for _, n := range repo.db.notes {
		stats.TotalDownloads += n.Downloads
	}
	return stats, nil
}

type semesterRepository struct {
	db *DB
}

func (repo *semesterRepository) List(ctx context.Context) ([]store.Semester, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	semesters := make([]store.Semester, 0, len(repo.db.semesters))
	for _, s := range repo.db.semesters {
		semesters = append(semesters, cloneSemester(*s))
	}
	sort.Slice(semesters, func(i, j int) bool {
		if semesters[i].Name != semesters[j].Name {
			return semesters[i].Name < semesters[j].Name
		}
		return semesters[i].ID < semesters[j].ID
	})
	return semesters, nil
}

func (repo *semesterRepository) Get(ctx context.Context, id string) (*store.Semester, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	s, ok := repo.db.semesters[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSemester(*s)
	return &out, nil
}

func (repo *semesterRepository) Create(ctx context.Context, semester store.Semester) (*store.Semester, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	semester = cloneSemester(semester)
	semester.ID = uuid.NewString()
	semester.Description = optional(semester.Description)
	repo.db.semesters[semester.ID] = &semester
	out := cloneSemester(semester)
	return &out, nil
}

func (repo *semesterRepository) Update(ctx context.Context, id string, patch store.SemesterPatch) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.semesters[id]
	if !ok {
		return store.NewWriteError(store.CollectionSemesters, "update", store.ErrNotFound)
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Description != nil {
		s.Description = optional(patch.Description)
	}
	return nil
}

func (repo *semesterRepository) Delete(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.semesters, id)
	return nil
}

type scheduleRepository struct {
	db *DB
}

func (repo *scheduleRepository) List(ctx context.Context, filter store.ScheduleFilter) ([]store.ExamSchedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]store.ExamSchedule, 0, len(repo.db.schedules))
	for _, s := range repo.db.schedules {
		if filter.SemesterID != "" && (s.SemesterID == nil || *s.SemesterID != filter.SemesterID) {
			continue
		}
		items = append(items, cloneSchedule(*s))
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ExamDate.Equal(b.ExamDate) {
			return a.ExamDate.Before(b.ExamDate)
		}
		if a.ExamTime != b.ExamTime {
			return a.ExamTime < b.ExamTime
		}
		return a.ID < b.ID
	})
	return items, nil
}

func (repo *scheduleRepository) Get(ctx context.Context, id string) (*store.ExamSchedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	s, ok := repo.db.schedules[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSchedule(*s)
	return &out, nil
}

func (repo *scheduleRepository) Create(ctx context.Context, schedule store.ExamSchedule) (*store.ExamSchedule, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	schedule = cloneSchedule(schedule)
	schedule.ID = uuid.NewString()
	schedule.ExamDate = dateOnly(schedule.ExamDate)
	schedule.SemesterID = optional(schedule.SemesterID)
	schedule.SemesterName = optional(schedule.SemesterName)
	repo.db.schedules[schedule.ID] = &schedule
	out := cloneSchedule(schedule)
	return &out, nil
}

func (repo *scheduleRepository) Update(ctx context.Context, id string, patch store.ExamSchedulePatch) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.schedules[id]
	if !ok {
		return store.NewWriteError(store.CollectionExamSchedules, "update", store.ErrNotFound)
	}
	if patch.Subject != nil {
		s.Subject = *patch.Subject
	}
	if patch.ExamDate != nil {
		s.ExamDate = dateOnly(*patch.ExamDate)
	}
	if patch.ExamTime != nil {
		s.ExamTime = *patch.ExamTime
	}
	if patch.SemesterID != nil {
		s.SemesterID = optional(patch.SemesterID)
	}
	if patch.SemesterName != nil {
		s.SemesterName = optional(patch.SemesterName)
	}
	return nil
}

func (repo *scheduleRepository) Delete(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.schedules, id)
	return nil
}

type announcementRepository struct {
	db *DB
}

// sorted returns announcements newest first; equal timestamps keep the most
// recently created first.
func (repo *announcementRepository) sorted() []store.Announcement {
	items := make([]store.Announcement, len(repo.db.announcements))
	for i, a := range repo.db.announcements {
		items[len(items)-1-i] = a
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (repo *announcementRepository) List(ctx context.Context) ([]store.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.sorted(), nil
}

func (repo *announcementRepository) Latest(ctx context.Context) (*store.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := repo.sorted()
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (repo *announcementRepository) Create(ctx context.Context, announcement store.Announcement) (*store.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	announcement.ID = uuid.NewString()
	announcement.CreatedAt = repo.db.now().UTC()
	repo.db.announcements = append(repo.db.announcements, announcement)
	return &announcement, nil
}

func (repo *announcementRepository) Count(ctx context.Context) (int64, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return int64(len(repo.db.announcements)), nil
}

type chatRepository struct {
	db *DB
}

func (repo *chatRepository) ListThread(ctx context.Context, key store.ThreadKey) ([]store.ChatMessage, error) {
	if err := key.Validate(); err != nil {
		return nil, store.NewQueryError(store.CollectionChatMessages, "list_thread", err)
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]store.ChatMessage, 0)
	for _, m := range repo.db.chat {
		if key.Matches(m) {
			msgs = append(msgs, cloneMessage(m))
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (repo *chatRepository) Create(ctx context.Context, msg store.ChatMessage) (*store.ChatMessage, error) {
	if err := msg.Thread().Validate(); err != nil {
		return nil, store.NewWriteError(store.CollectionChatMessages, "create", err)
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	msg = cloneMessage(msg)
	msg.ID = uuid.NewString()
	msg.CreatedAt = repo.db.now().UTC()
	if msg.IsGeneral {
		msg.SubjectName = nil
	}
	repo.db.chat = append(repo.db.chat, msg)
	out := cloneMessage(msg)
	return &out, nil
}

type adminRepository struct {
	db *DB
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (repo *adminRepository) Exists(ctx context.Context, email string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	_, ok := repo.db.admins[normalizeEmail(email)]
	return ok, nil
}

func (repo *adminRepository) Add(ctx context.Context, email string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	key := normalizeEmail(email)
	if _, ok := repo.db.admins[key]; !ok {
		repo.db.admins[key] = repo.db.now().UTC()
	}
	return nil
}

func (repo *adminRepository) Remove(ctx context.Context, email string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.admins, normalizeEmail(email))
	return nil
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// optional mirrors the SQL layer: blank optional fields are stored as NULL.
func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return copyStr(s)
}

func cloneNote(n store.Note) store.Note {
	n.SemesterID = copyStr(n.SemesterID)
	n.SemesterName = copyStr(n.SemesterName)
	n.Description = copyStr(n.Description)
	return n
}

func cloneSemester(s store.Semester) store.Semester {
	s.Description = copyStr(s.Description)
	return s
}

func cloneSchedule(s store.ExamSchedule) store.ExamSchedule {
	s.SemesterID = copyStr(s.SemesterID)
	s.SemesterName = copyStr(s.SemesterName)
	return s
}

func cloneMessage(m store.ChatMessage) store.ChatMessage {
	m.SubjectName = copyStr(m.SubjectName)
	return m
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
