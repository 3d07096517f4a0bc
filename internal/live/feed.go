package live

import (
	"context"
	"sync"

	"github.com/jw6ventures/tuition/internal/metrics"
	"github.com/jw6ventures/tuition/internal/store"
)

// Notifier announces that a thread changed.
type Notifier interface {
	Publish(ctx context.Context, key store.ThreadKey) error
}

// Feed carries change notifications between processes. Listen blocks until
// ctx is done (returning nil) or the underlying connection fails.
type Feed interface {
	Notifier
	Listen(ctx context.Context, fn func(store.ThreadKey)) error
}

// MemoryFeed delivers notifications within one process.
type MemoryFeed struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]func(store.ThreadKey)
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{listeners: map[int]func(store.ThreadKey){}}
}

func (f *MemoryFeed) Publish(ctx context.Context, key store.ThreadKey) error {
	f.mu.RLock()
	fns := make([]func(store.ThreadKey), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	metrics.FeedEvent("memory", "published")
	for _, fn := range fns {
		fn(key)
	}
	return nil
}

func (f *MemoryFeed) Listen(ctx context.Context, fn func(store.ThreadKey)) error {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	delete(f.listeners, id)
	f.mu.Unlock()
	return nil
}
