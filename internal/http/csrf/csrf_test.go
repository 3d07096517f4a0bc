package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jw6ventures/tuition/internal/config"
)

func newHandler(seen *string) http.Handler {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	return Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestIssuesTokenOnSafeRequest(t *testing.T) {
	var seen string
	rr := httptest.NewRecorder()
	newHandler(&seen).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected GET to pass, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != seen || seen == "" {
		t.Fatalf("expected token cookie matching context token, got %+v / %q", cookies, seen)
	}
	if cookies[0].Secure {
		t.Fatalf("cookie must not be Secure for a plain http base URL")
	}
}

func TestStateChangingRequests(t *testing.T) {
	const token = "tok-123"
	tests := []struct {
		name   string
		header string
		form   string
		want   int
	}{
		{name: "header", header: token, want: http.StatusNoContent},
		{name: "form field", form: token, want: http.StatusNoContent},
		{name: "missing", want: http.StatusForbidden},
		{name: "wrong", header: "other", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			body := url.Values{}
			if tt.form != "" {
				body.Set(FormField, tt.form)
			}
			req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(body.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
			if tt.header != "" {
				req.Header.Set(HeaderName, tt.header)
			}
			rr := httptest.NewRecorder()
			newHandler(&seen).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestPostWithoutCookieRejected(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodDelete, "/admin/notes/1", nil)
	req.Header.Set(HeaderName, "anything")
	rr := httptest.NewRecorder()
	newHandler(&seen).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden without a prior token cookie, got %d", rr.Code)
	}
}
