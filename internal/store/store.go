package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbPool is the subset of pgxpool.Pool used by the repositories.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store aggregates the collection repositories.
type Store struct {
	pool dbPool

	Notes         NoteRepository
	Semesters     SemesterRepository
	ExamSchedules ExamScheduleRepository
	Announcements AnnouncementRepository
	ChatMessages  ChatMessageRepository
	Admins        AdminRepository
}

// New wires PostgreSQL repositories over a shared connection pool.
func New(pool dbPool) *Store {
	return newWithClock(pool, time.Now)
}

func newWithClock(pool dbPool, now func() time.Time) *Store {
	return &Store{
		pool:          pool,
		Notes:         &noteRepo{pool: pool},
		Semesters:     &semesterRepo{pool: pool},
		ExamSchedules: &examScheduleRepo{pool: pool},
		Announcements: &announcementRepo{pool: pool, now: now},
		ChatMessages:  &chatMessageRepo{pool: pool, now: now},
		Admins:        &adminRepo{pool: pool},
	}
}

// HealthCheck verifies that the backing database is reachable. Stores without
// a pool (in-memory) are always healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
