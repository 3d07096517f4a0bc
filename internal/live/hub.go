// Package live keeps chat views current: a Hub re-queries a thread whenever
// a change notification for it arrives and hands subscribers the complete,
// ordered snapshot.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/metrics"
	"github.com/jw6ventures/tuition/internal/store"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// ThreadLister loads the full snapshot of one thread.
type ThreadLister interface {
	ListThread(ctx context.Context, key store.ThreadKey) ([]store.ChatMessage, error)
}

type subscription struct {
	key      store.ThreadKey
	onChange func([]store.ChatMessage)
	dirty    chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// mark schedules a re-query. Pending marks collapse into one.
func (s *subscription) mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Hub fans change notifications out to thread subscriptions.
type Hub struct {
	lister  ThreadLister
	onError func(store.ThreadKey, error)

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func NewHub(lister ThreadLister) *Hub {
	return &Hub{
		lister: lister,
		onError: func(key store.ThreadKey, err error) {
			httperrors.LogError(context.Background(), fmt.Sprintf("snapshot %s", key), err)
		},
		subs: map[*subscription]struct{}{},
	}
}

// OnError replaces the handler for failed snapshot queries. The affected
// subscriber keeps its last snapshot.
func (h *Hub) OnError(fn func(store.ThreadKey, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = fn
}

func (h *Hub) reportError(key store.ThreadKey, err error) {
	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()
	fn(key, err)
}

// Subscribe delivers the current snapshot of key to onChange and again after
// every change to the thread. Calls for one subscription never overlap and
// arrive in order; a burst of changes may be folded into a single snapshot.
//
// Once the returned unsubscribe func returns, onChange is not called again.
// It is safe to call more than once but must not be called from onChange.
func (h *Hub) Subscribe(key store.ThreadKey, onChange func([]store.ChatMessage)) (func(), error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if onChange == nil {
		return nil, errors.New("live: nil change callback")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		key:      key,
		onChange: onChange,
		dirty:    make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	sub.mark()

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.SubscriptionOpened()

	go h.deliver(ctx, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			sub.cancel()
			<-sub.done
			metrics.SubscriptionClosed()
		})
	}, nil
}

func (h *Hub) deliver(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.dirty:
		}

		msgs, err := h.lister.ListThread(ctx, sub.key)
		if ctx.Err() != nil {
			return
		}
		metrics.SnapshotDelivered(err)
		if err != nil {
			h.reportError(sub.key, err)
			continue
		}
		sub.onChange(msgs)
	}
}

// Publish marks every subscription on key as stale. It satisfies Notifier,
// so a single-process deployment can notify the hub directly.
func (h *Hub) Publish(ctx context.Context, key store.ThreadKey) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.key == key {
			sub.mark()
		}
	}
	return nil
}

// Refresh marks every subscription stale, used after a feed reconnect when
// notifications may have been missed.
func (h *Hub) Refresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.mark()
	}
}

// Run consumes feed until ctx is done, reconnecting with backoff.
func (h *Hub) Run(ctx context.Context, feed Feed) error {
	backoff := minBackoff
	for {
		err := feed.Listen(ctx, func(key store.ThreadKey) {
			_ = h.Publish(ctx, key)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("feed closed")
		}
		httperrors.LogWarn(ctx, "live feed interrupted, reconnecting", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		h.Refresh()
	}
}
