// Package prefs holds per-browser preferences: dark mode, notification
// toggle, and the id of the last announcement shown.
package prefs

import (
	"strconv"
	"sync"
)

const (
	KeyDarkMode              = "darkMode"
	KeyNotificationsEnabled  = "notificationsEnabled"
	KeyLastSeenAnnouncement  = "lastSeenAnnouncementId"
	defaultNotificationsFlag = false
)

// Store is a string key/value store scoped to one browser.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Preferences reads and writes typed values on top of a Store.
type Preferences struct {
	store Store
}

func New(store Store) *Preferences {
	return &Preferences{store: store}
}

func (p *Preferences) DarkMode() bool {
	return p.flag(KeyDarkMode, false)
}

func (p *Preferences) SetDarkMode(on bool) {
	p.store.Set(KeyDarkMode, strconv.FormatBool(on))
}

// NotificationsEnabled defaults to false until the user turns it on.
func (p *Preferences) NotificationsEnabled() bool {
	return p.flag(KeyNotificationsEnabled, defaultNotificationsFlag)
}

func (p *Preferences) SetNotificationsEnabled(on bool) {
	p.store.Set(KeyNotificationsEnabled, strconv.FormatBool(on))
}

func (p *Preferences) LastSeenAnnouncement() string {
	v, _ := p.store.Get(KeyLastSeenAnnouncement)
	return v
}

func (p *Preferences) SetLastSeenAnnouncement(id string) {
	p.store.Set(KeyLastSeenAnnouncement, id)
}

func (p *Preferences) flag(key string, def bool) bool {
	v, ok := p.store.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Deduplicator decides whether the latest announcement should pop up.
type Deduplicator struct {
	prefs *Preferences
}

func NewDeduplicator(p *Preferences) *Deduplicator {
	return &Deduplicator{prefs: p}
}

// ShouldShow is true when id is non-empty and differs from the last one seen.
func (d *Deduplicator) ShouldShow(id string) bool {
	return id != "" && id != d.prefs.LastSeenAnnouncement()
}

func (d *Deduplicator) MarkSeen(id string) {
	if id == "" {
		return
	}
	d.prefs.SetLastSeenAnnouncement(id)
}
