// Package ratelimit throttles requests per client with token buckets.
package ratelimit

import (
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jw6ventures/tuition/internal/auth"
)

const defaultMaxEntries = 10000

// KeyFunc names the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// Limiter keeps one token bucket per key. Buckets idle for two cleanup
// intervals are dropped.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       rate.Limit
	burst      int
	maxEntries int
	key        KeyFunc
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New starts a limiter allowing r requests per second with the given burst.
// Call Stop to end its cleanup loop.
func New(r rate.Limit, burst int, cleanup time.Duration, key KeyFunc) *Limiter {
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		rate:       r,
		burst:      burst,
		maxEntries: defaultMaxEntries,
		key:        key,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go l.cleanupLoop(cleanup)
	return l
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// reserve takes a token for key, returning how long the caller must wait
// when none is available.
func (l *Limiter) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxEntries {
			l.evictOldest()
		}
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, b := range l.buckets {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = k, b.lastSeen
		}
	}
	delete(l.buckets, oldestKey)
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune(l.now().Add(-2 * every))
		}
	}
}

func (l *Limiter) prune(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.reserve(l.key(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP keys requests by client address. Forwarding headers are honored
// only when the direct peer is one of the trusted proxies; with no proxies
// configured they are always honored.
func ClientIP(trustedProxies []string) KeyFunc {
	prefixes := parsePrefixes(trustedProxies)
	return func(r *http.Request) string {
		peer, err := netip.ParseAddrPort(r.RemoteAddr)
		var remote netip.Addr
		if err == nil {
			remote = peer.Addr()
		} else if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
			remote = addr
		}

		if len(prefixes) > 0 && !contains(prefixes, remote) {
			return remote.String()
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return addr.String()
			}
		}
		if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return addr.String()
		}
		return remote.String()
	}
}

// SubjectOrIP keys signed-in users by account and everyone else by address.
func SubjectOrIP(trustedProxies []string) KeyFunc {
	byIP := ClientIP(trustedProxies)
	return func(r *http.Request) string {
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			return "user:" + id.Subject
		}
		return "ip:" + byIP(r)
	}
}

func parsePrefixes(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return out
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	for _, p := range prefixes {
		if p.Contains(addr.Unmap()) || p.Contains(addr) {
			return true
		}
	}
	return false
}
