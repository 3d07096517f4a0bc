package live

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/metrics"
	"github.com/jw6ventures/tuition/internal/store"
)

// RedisFeed uses Redis pub/sub on one channel; the payload is the thread
// key string.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

func NewRedisFeed(client *redis.Client, channel string) *RedisFeed {
	return &RedisFeed{client: client, channel: channel}
}

func (f *RedisFeed) Publish(ctx context.Context, key store.ThreadKey) error {
	if err := f.client.Publish(ctx, f.channel, key.String()).Err(); err != nil {
		return err
	}
	metrics.FeedEvent("redis", "published")
	return nil
}

func (f *RedisFeed) Listen(ctx context.Context, fn func(store.ThreadKey)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting events.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			key, err := store.ParseThreadKey(msg.Payload)
			if err != nil {
				httperrors.LogWarn(ctx, "ignoring notification "+msg.Payload, err)
				continue
			}
			metrics.FeedEvent("redis", "received")
			fn(key)
		}
	}
}
