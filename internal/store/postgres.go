package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// noteRepo implements NoteRepository.
type noteRepo struct {
	pool dbPool
}

const noteColumns = `id, subject_name, drive_link, downloads, semester_id, semester_name, description`

func scanNote(row pgx.CollectableRow) (Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.SubjectName, &n.DriveLink, &n.Downloads, &n.SemesterID, &n.SemesterName, &n.Description)
	return n, err
}

func (r *noteRepo) List(ctx context.Context, filter NoteFilter) ([]Note, error) {
	defer observeDB(ctx, "notes.list")()
	q := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if filter.SemesterID != "" {
		q += ` WHERE semester_id=$1`
		args = append(args, filter.SemesterID)
	}
	q += ` ORDER BY subject_name, id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, queryErr(CollectionNotes, "list", err)
	}
	notes, err := pgx.CollectRows(rows, scanNote)
	if err != nil {
		return nil, queryErr(CollectionNotes, "list", err)
	}
	return notes, nil
}

func (r *noteRepo) Get(ctx context.Context, id string) (*Note, error) {
	defer observeDB(ctx, "notes.get")()
	rows, err := r.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1`, id)
	if err != nil {
		return nil, queryErr(CollectionNotes, "get", err)
	}
	n, err := pgx.CollectOneRow(rows, scanNote)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(CollectionNotes, "get", err)
	}
	return &n, nil
}

func (r *noteRepo) Create(ctx context.Context, note Note) (*Note, error) {
	defer observeDB(ctx, "notes.create")()
	note.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO notes (`+noteColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		note.ID, note.SubjectName, note.DriveLink, note.Downloads,
		nullable(note.SemesterID), nullable(note.SemesterName), nullable(note.Description))
	if err != nil {
		return nil, writeErr(CollectionNotes, "create", err)
	}
	return &note, nil
}

func (r *noteRepo) Update(ctx context.Context, id string, patch NotePatch) error {
	defer observeDB(ctx, "notes.update")()
	var b setBuilder
	b.text("subject_name", patch.SubjectName)
	b.text("drive_link", patch.DriveLink)
	if patch.Downloads != nil {
		b.add("downloads", *patch.Downloads)
	}
	b.optional("semester_id", patch.SemesterID)
	b.optional("semester_name", patch.SemesterName)
	b.optional("description", patch.Description)
	return writeErr(CollectionNotes, "update", b.exec(ctx, r.pool, CollectionNotes, id))
}

func (r *noteRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "notes.delete")()
	_, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id=$1`, id)
	return writeErr(CollectionNotes, "delete", err)
}

func (r *noteRepo) Stats(ctx context.Context) (NoteStats, error) {
	defer observeDB(ctx, "notes.stats")()
	var stats NoteStats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(downloads), 0) FROM notes`).
		Scan(&stats.TotalNotes, &stats.TotalDownloads)
	if err != nil {
		return NoteStats{}, queryErr(CollectionNotes, "stats", err)
	}
	return stats, nil
}

// semesterRepo implements SemesterRepository.
type semesterRepo struct {
	pool dbPool
}

func scanSemester(row pgx.CollectableRow) (Semester, error) {
	var s Semester
	err := row.Scan(&s.ID, &s.Name, &s.Description)
	return s, err
}

func (r *semesterRepo) List(ctx context.Context) ([]Semester, error) {
	defer observeDB(ctx, "semesters.list")()
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM semesters ORDER BY name, id`)
	if err != nil {
		return nil, queryErr(CollectionSemesters, "list", err)
	}
	semesters, err := pgx.CollectRows(rows, scanSemester)
	if err != nil {
		return nil, queryErr(CollectionSemesters, "list", err)
	}
	return semesters, nil
}

func (r *semesterRepo) Get(ctx context.Context, id string) (*Semester, error) {
	defer observeDB(ctx, "semesters.get")()
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM semesters WHERE id=$1`, id)
	if err != nil {
		return nil, queryErr(CollectionSemesters, "get", err)
	}
	s, err := pgx.CollectOneRow(rows, scanSemester)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(CollectionSemesters, "get", err)
	}
	return &s, nil
}

func (r *semesterRepo) Create(ctx context.Context, semester Semester) (*Semester, error) {
	defer observeDB(ctx, "semesters.create")()
	semester.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO semesters (id, name, description) VALUES ($1, $2, $3)`,
		semester.ID, semester.Name, nullable(semester.Description))
	if err != nil {
		return nil, writeErr(CollectionSemesters, "create", err)
	}
	return &semester, nil
}

func (r *semesterRepo) Update(ctx context.Context, id string, patch SemesterPatch) error {
	defer observeDB(ctx, "semesters.update")()
	var b setBuilder
	b.text("name", patch.Name)
	b.optional("description", patch.Description)
	return writeErr(CollectionSemesters, "update", b.exec(ctx, r.pool, CollectionSemesters, id))
}

func (r *semesterRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "semesters.delete")()
	_, err := r.pool.Exec(ctx, `DELETE FROM semesters WHERE id=$1`, id)
	return writeErr(CollectionSemesters, "delete", err)
}

// examScheduleRepo implements ExamScheduleRepository.
type examScheduleRepo struct {
	pool dbPool
}

const scheduleColumns = `id, subject, exam_date, exam_time, semester_id, semester_name`

func scanSchedule(row pgx.CollectableRow) (ExamSchedule, error) {
	var s ExamSchedule
	err := row.Scan(&s.ID, &s.Subject, &s.ExamDate, &s.ExamTime, &s.SemesterID, &s.SemesterName)
	return s, err
}

func (r *examScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]ExamSchedule, error) {
	defer observeDB(ctx, "exam_schedules.list")()
	q := `SELECT ` + scheduleColumns + ` FROM exam_schedules`
	var args []any
	if filter.SemesterID != "" {
		q += ` WHERE semester_id=$1`
		args = append(args, filter.SemesterID)
	}
	q += ` ORDER BY exam_date ASC, exam_time ASC, id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, queryErr(CollectionExamSchedules, "list", err)
	}
	schedules, err := pgx.CollectRows(rows, scanSchedule)
	if err != nil {
		return nil, queryErr(CollectionExamSchedules, "list", err)
	}
	return schedules, nil
}

func (r *examScheduleRepo) Get(ctx context.Context, id string) (*ExamSchedule, error) {
	defer observeDB(ctx, "exam_schedules.get")()
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM exam_schedules WHERE id=$1`, id)
	if err != nil {
		return nil, queryErr(CollectionExamSchedules, "get", err)
	}
	s, err := pgx.CollectOneRow(rows, scanSchedule)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(CollectionExamSchedules, "get", err)
	}
	return &s, nil
}

func (r *examScheduleRepo) Create(ctx context.Context, schedule ExamSchedule) (*ExamSchedule, error) {
	defer observeDB(ctx, "exam_schedules.create")()
	schedule.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO exam_schedules (`+scheduleColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		schedule.ID, schedule.Subject, dateOnly(schedule.ExamDate), schedule.ExamTime,
		nullable(schedule.SemesterID), nullable(schedule.SemesterName))
	if err != nil {
		return nil, writeErr(CollectionExamSchedules, "create", err)
	}
	return &schedule, nil
}

func (r *examScheduleRepo) Update(ctx context.Context, id string, patch ExamSchedulePatch) error {
	defer observeDB(ctx, "exam_schedules.update")()
	var b setBuilder
	b.text("subject", patch.Subject)
	if patch.ExamDate != nil {
		b.add("exam_date", dateOnly(*patch.ExamDate))
	}
	b.text("exam_time", patch.ExamTime)
	b.optional("semester_id", patch.SemesterID)
	b.optional("semester_name", patch.SemesterName)
	return writeErr(CollectionExamSchedules, "update", b.exec(ctx, r.pool, CollectionExamSchedules, id))
}

func (r *examScheduleRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "exam_schedules.delete")()
	_, err := r.pool.Exec(ctx, `DELETE FROM exam_schedules WHERE id=$1`, id)
	return writeErr(CollectionExamSchedules, "delete", err)
}

// announcementRepo implements AnnouncementRepository.
type announcementRepo struct {
	pool dbPool
	now  func() time.Time
}

func scanAnnouncement(row pgx.CollectableRow) (Announcement, error) {
	var a Announcement
	err := row.Scan(&a.ID, &a.Title, &a.Message, &a.SentBy, &a.CreatedAt)
	return a, err
}

func (r *announcementRepo) List(ctx context.Context) ([]Announcement, error) {
	defer observeDB(ctx, "announcements.list")()
	rows, err := r.pool.Query(ctx, `SELECT id, title, message, sent_by, created_at FROM announcements ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, queryErr(CollectionAnnouncements, "list", err)
	}
	items, err := pgx.CollectRows(rows, scanAnnouncement)
	if err != nil {
		return nil, queryErr(CollectionAnnouncements, "list", err)
	}
	return items, nil
}

// Latest returns nil without error when there are no announcements.
func (r *announcementRepo) Latest(ctx context.Context) (*Announcement, error) {
	defer observeDB(ctx, "announcements.latest")()
	rows, err := r.pool.Query(ctx, `SELECT id, title, message, sent_by, created_at FROM announcements ORDER BY created_at DESC, id LIMIT 1`)
	if err != nil {
		return nil, queryErr(CollectionAnnouncements, "latest", err)
	}
	a, err := pgx.CollectOneRow(rows, scanAnnouncement)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr(CollectionAnnouncements, "latest", err)
	}
	return &a, nil
}

func (r *announcementRepo) Create(ctx context.Context, announcement Announcement) (*Announcement, error) {
	defer observeDB(ctx, "announcements.create")()
	announcement.ID = uuid.NewString()
	announcement.CreatedAt = r.now().UTC()
	_, err := r.pool.Exec(ctx, `INSERT INTO announcements (id, title, message, sent_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
		announcement.ID, announcement.Title, announcement.Message, announcement.SentBy, announcement.CreatedAt)
	if err != nil {
		return nil, writeErr(CollectionAnnouncements, "create", err)
	}
	return &announcement, nil
}

func (r *announcementRepo) Count(ctx context.Context) (int64, error) {
	defer observeDB(ctx, "announcements.count")()
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&count); err != nil {
		return 0, queryErr(CollectionAnnouncements, "count", err)
	}
	return count, nil
}

// chatMessageRepo implements ChatMessageRepository.
type chatMessageRepo struct {
	pool dbPool
	now  func() time.Time
}

func scanChatMessage(row pgx.CollectableRow) (ChatMessage, error) {
	var m ChatMessage
	err := row.Scan(&m.ID, &m.Content, &m.UserID, &m.UserName, &m.IsGeneral, &m.SubjectName, &m.CreatedAt)
	return m, err
}

func (r *chatMessageRepo) ListThread(ctx context.Context, key ThreadKey) ([]ChatMessage, error) {
	defer observeDB(ctx, "chat_messages.list_thread")()
	if err := key.Validate(); err != nil {
		return nil, queryErr(CollectionChatMessages, "list_thread", err)
	}
	const cols = `SELECT id, content, user_id, user_name, is_general, subject_name, created_at FROM chat_messages`
	var (
		rows pgx.Rows
		err  error
	)
	if key.IsGeneral {
		rows, err = r.pool.Query(ctx, cols+` WHERE is_general=TRUE ORDER BY created_at ASC, seq ASC`)
	} else {
		rows, err = r.pool.Query(ctx, cols+` WHERE is_general=FALSE AND subject_name=$1 ORDER BY created_at ASC, seq ASC`, key.SubjectName)
	}
	if err != nil {
		return nil, queryErr(CollectionChatMessages, "list_thread", err)
	}
	msgs, err := pgx.CollectRows(rows, scanChatMessage)
	if err != nil {
		return nil, queryErr(CollectionChatMessages, "list_thread", err)
	}
	return msgs, nil
}

func (r *chatMessageRepo) Create(ctx context.Context, msg ChatMessage) (*ChatMessage, error) {
	defer observeDB(ctx, "chat_messages.create")()
	if err := msg.Thread().Validate(); err != nil {
		return nil, writeErr(CollectionChatMessages, "create", err)
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = r.now().UTC()
	if msg.IsGeneral {
		msg.SubjectName = nil
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO chat_messages (id, content, user_id, user_name, is_general, subject_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.Content, msg.UserID, msg.UserName, msg.IsGeneral, msg.SubjectName, msg.CreatedAt)
	if err != nil {
		return nil, writeErr(CollectionChatMessages, "create", err)
	}
	return &msg, nil
}

// adminRepo implements AdminRepository.
type adminRepo struct {
	pool dbPool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *adminRepo) Exists(ctx context.Context, email string) (bool, error) {
	defer observeDB(ctx, "admins.exists")()
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE email=$1)`, normalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, queryErr(CollectionAdmins, "exists", err)
	}
	return exists, nil
}

func (r *adminRepo) Add(ctx context.Context, email string) error {
	defer observeDB(ctx, "admins.add")()
	_, err := r.pool.Exec(ctx, `INSERT INTO admins (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, normalizeEmail(email))
	return writeErr(CollectionAdmins, "add", err)
}

func (r *adminRepo) Remove(ctx context.Context, email string) error {
	defer observeDB(ctx, "admins.remove")()
	_, err := r.pool.Exec(ctx, `DELETE FROM admins WHERE email=$1`, normalizeEmail(email))
	return writeErr(CollectionAdmins, "remove", err)
}

// setBuilder assembles the SET clause of a partial update.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s=$%d", column, len(b.args)))
}

func (b *setBuilder) text(column string, v *string) {
	if v != nil {
		b.add(column, *v)
	}
}

// optional stores NULL for an empty string.
func (b *setBuilder) optional(column string, v *string) {
	if v != nil {
		b.add(column, nullable(v))
	}
}

func (b *setBuilder) exec(ctx context.Context, pool dbPool, table, id string) error {
	if len(b.sets) == 0 {
		return nil
	}
	b.args = append(b.args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d", table, strings.Join(b.sets, ", "), len(b.args))
	tag, err := pool.Exec(ctx, q, b.args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullable(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
