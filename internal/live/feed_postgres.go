package live

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/metrics"
	"github.com/jw6ventures/tuition/internal/store"
)

type notifyPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PostgresFeed uses LISTEN/NOTIFY on one channel; the payload is the
// thread key string.
type PostgresFeed struct {
	pool    notifyPool
	channel string
}

func NewPostgresFeed(pool notifyPool, channel string) *PostgresFeed {
	return &PostgresFeed{pool: pool, channel: channel}
}

func (f *PostgresFeed) Publish(ctx context.Context, key store.ThreadKey) error {
	if _, err := f.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, f.channel, key.String()); err != nil {
		return err
	}
	metrics.FeedEvent("postgres", "published")
	return nil
}

func (f *PostgresFeed) Listen(ctx context.Context, fn func(store.ThreadKey)) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		key, err := store.ParseThreadKey(n.Payload)
		if err != nil {
			httperrors.LogWarn(ctx, "ignoring notification "+n.Payload, err)
			continue
		}
		metrics.FeedEvent("postgres", "received")
		fn(key)
	}
}
