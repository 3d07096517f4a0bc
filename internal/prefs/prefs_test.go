package prefs

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jw6ventures/tuition/internal/auth"
)

func TestDeduplicatorShowsEachAnnouncementOnce(t *testing.T) {
	d := NewDeduplicator(New(NewMemoryStore()))

	if d.ShouldShow("") {
		t.Fatalf("empty id must never be shown")
	}
	if !d.ShouldShow("a1") {
		t.Fatalf("expected first sighting to be shown")
	}
	d.MarkSeen("a1")
	for i := 0; i < 3; i++ {
		if d.ShouldShow("a1") {
			t.Fatalf("expected a1 to stay hidden after MarkSeen")
		}
	}
	if !d.ShouldShow("a2") {
		t.Fatalf("expected a new announcement to be shown")
	}
}

func TestPreferenceDefaults(t *testing.T) {
	p := New(NewMemoryStore())
	if p.DarkMode() {
		t.Fatalf("dark mode should default to off")
	}
	if p.NotificationsEnabled() {
		t.Fatalf("notifications should default to off")
	}
	p.SetNotificationsEnabled(true)
	p.SetDarkMode(true)
	if !p.NotificationsEnabled() || !p.DarkMode() {
		t.Fatalf("toggles not persisted")
	}
}

func TestCookieStoreRoundTrip(t *testing.T) {
	codec := auth.DeriveCodec(strings.Repeat("s", 32), "prefs", time.Hour)

	rr := httptest.NewRecorder()
	first := New(NewCookieStore(codec, false, rr, httptest.NewRequest(http.MethodGet, "/", nil)))
	first.SetDarkMode(true)
	first.SetLastSeenAnnouncement("a7")

	if got := len(rr.Header().Values("Set-Cookie")); got != 1 {
		t.Fatalf("expected a single Set-Cookie header, got %d", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	second := New(NewCookieStore(codec, false, httptest.NewRecorder(), req))
	if !second.DarkMode() || second.LastSeenAnnouncement() != "a7" {
		t.Fatalf("preferences lost across requests")
	}
	if NewDeduplicator(second).ShouldShow("a7") {
		t.Fatalf("announcement seen on this browser should stay hidden")
	}
}

func TestDeduplicationIsPerBrowser(t *testing.T) {
	codec := auth.DeriveCodec(strings.Repeat("s", 32), "prefs", time.Hour)

	laptop := NewDeduplicator(New(NewCookieStore(codec, false, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))))
	laptop.MarkSeen("a1")

	phone := NewDeduplicator(New(NewCookieStore(codec, false, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))))
	if !phone.ShouldShow("a1") {
		t.Fatalf("another browser has its own seen state")
	}
}

func TestCookieStoreIgnoresTamperedCookie(t *testing.T) {
	codec := auth.DeriveCodec(strings.Repeat("s", 32), "prefs", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tampered"})

	p := New(NewCookieStore(codec, false, httptest.NewRecorder(), req))
	if p.DarkMode() || p.LastSeenAnnouncement() != "" {
		t.Fatalf("expected defaults for undecodable cookie")
	}
}

func TestCookieStoreLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	codec := auth.DeriveCodec(strings.Repeat("s", 32), "prefs", time.Hour)
	codec.MaxLength(8)
	rr := httptest.NewRecorder()
	New(NewCookieStore(codec, false, rr, httptest.NewRequest(http.MethodPost, "/", nil))).SetDarkMode(true)

	if rr.Header().Get("Set-Cookie") != "" {
		t.Fatalf("expected no cookie when encoding fails")
	}
	if !strings.Contains(buf.String(), "[WARN]") || !strings.Contains(buf.String(), "preferences not saved") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}
