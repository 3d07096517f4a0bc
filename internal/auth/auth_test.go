package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/jw6ventures/tuition/internal/config"
)

type fakeAdmins struct {
	emails map[string]bool
	err    error
	calls  int
}

func (f *fakeAdmins) Exists(ctx context.Context, email string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.emails[strings.ToLower(email)], nil
}

func testConfig() *config.Config {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	cfg.Session.Secret = strings.Repeat("k", 32)
	return cfg
}

func TestResolveRole(t *testing.T) {
	admins := &fakeAdmins{emails: map[string]bool{"boss@example.com": true}}
	r := NewResolver(admins)

	tests := []struct {
		name string
		id   Identity
		err  error
		want Role
	}{
		{name: "admin", id: Identity{Subject: "1", Email: "boss@example.com"}, want: RoleAdmin},
		{name: "member", id: Identity{Subject: "2", Email: "student@example.com"}, want: RoleMember},
		{name: "no email", id: Identity{Subject: "3"}, want: RoleMember},
		{name: "lookup failure", id: Identity{Subject: "1", Email: "boss@example.com"}, err: errors.New("db down"), want: RoleMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admins.err = tt.err
			if got := r.ResolveRole(context.Background(), tt.id); got != tt.want {
				t.Fatalf("ResolveRole() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager(testConfig())
	rr := httptest.NewRecorder()
	id := Identity{Subject: "sub-1", Email: "a@example.com", Name: "Ada"}
	if err := m.Issue(rr, id); err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	s := m.Load(req)
	if !s.Authenticated() || *s.Identity != id {
		t.Fatalf("expected authenticated session for %+v, got %+v", id, s)
	}
}

func TestSessionRejectsTamperedAndExpired(t *testing.T) {
	m := NewSessionManager(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "garbage"})
	if s := m.Load(req); s.State != StateAnonymous {
		t.Fatalf("expected anonymous session for tampered cookie, got %s", s.State)
	}

	rr := httptest.NewRecorder()
	m.Issue(rr, Identity{Subject: "sub-1"})
	m.now = func() time.Time { return time.Now().Add(sessionTTL + time.Hour) }
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	if s := m.Load(req); s.State != StateAnonymous {
		t.Fatalf("expected anonymous session after expiry, got %s", s.State)
	}
}

func TestDeriveCodecSeparatesPurposes(t *testing.T) {
	secret := strings.Repeat("k", 32)
	a := DeriveCodec(secret, "session", time.Hour)
	b := DeriveCodec(secret, "prefs", time.Hour)

	encoded, err := a.Encode("c", map[string]string{"x": "y"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var out map[string]string
	if err := b.Decode("c", encoded, &out); err == nil {
		t.Fatalf("expected codec for another purpose to reject the value")
	}
	if err := DeriveCodec(secret, "session", time.Hour).Decode("c", encoded, &out); err != nil || out["x"] != "y" {
		t.Fatalf("expected same-purpose codec to decode, got %v", err)
	}
}

type fakeOAuth struct {
	*oauth2.Config
	token *oauth2.Token
	err   error
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if code != "good-code" {
		return nil, errors.New("bad code")
	}
	return f.token, f.err
}

func withCookies(req *http.Request, rr *httptest.ResponseRecorder) *http.Request {
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
	return req
}

func runLogin(t *testing.T, admins *fakeAdmins, email string) *httptest.ResponseRecorder {
	t.Helper()
	oauth := &fakeOAuth{
		Config: &oauth2.Config{ClientID: "client", Endpoint: oauth2.Endpoint{AuthURL: "https://idp.example.com/authorize"}},
		token:  (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]any{"id_token": "raw"}),
	}
	var nonce string
	verify := func(ctx context.Context, raw string) (idClaims, error) {
		if raw != "raw" {
			return idClaims{}, errors.New("unexpected token")
		}
		return idClaims{Subject: "sub-9", Email: email, Name: "Grace", Nonce: nonce}, nil
	}
	svc := newService(oauth, verify, NewSessionManager(testConfig()), NewResolver(admins))

	begin := httptest.NewRecorder()
	svc.BeginLogin(begin, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if begin.Code != http.StatusFound {
		t.Fatalf("expected redirect to provider, got %d", begin.Code)
	}
	loc, err := url.Parse(begin.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	nonce = loc.Query().Get("nonce")
	if state == "" || nonce == "" {
		t.Fatalf("expected state and nonce in %s", loc)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+url.QueryEscape(state), nil)
	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, withCookies(req, begin))
	return rr
}

func TestCallbackRedirectsByRole(t *testing.T) {
	admins := &fakeAdmins{emails: map[string]bool{"boss@example.com": true}}

	rr := runLogin(t, admins, "Boss@Example.com")
	if loc := rr.Header().Get("Location"); loc != "/admin" {
		t.Fatalf("expected admin redirect, got %q", loc)
	}
	var sawSession bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			sawSession = true
		}
	}
	if !sawSession {
		t.Fatalf("expected session cookie to be issued")
	}

	rr = runLogin(t, admins, "student@example.com")
	if loc := rr.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected member redirect, got %q", loc)
	}

	admins.err = errors.New("lookup failed")
	rr = runLogin(t, admins, "boss@example.com")
	if loc := rr.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected member redirect on lookup failure, got %q", loc)
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	oauth := &fakeOAuth{Config: &oauth2.Config{}}
	svc := newService(oauth, nil, NewSessionManager(testConfig()), NewResolver(&fakeAdmins{}))

	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state=forged", nil))
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/auth?error=") {
		t.Fatalf("expected redirect back to sign-in with notice, got %q", loc)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			t.Fatalf("no session may be issued on failure")
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	admins := &fakeAdmins{emails: map[string]bool{"boss@example.com": true}}
	svc := newService(nil, nil, NewSessionManager(testConfig()), NewResolver(admins))
	var reached bool
	h := svc.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := RoleFromContext(r.Context()); role != RoleAdmin {
			t.Fatalf("expected admin role in context")
		}
		reached = true
	}))

	tests := []struct {
		name     string
		session  Session
		location string
	}{
		{name: "anonymous", session: Session{State: StateAnonymous}, location: "/auth"},
		{name: "member", session: Session{State: StateAuthenticated, Identity: &Identity{Subject: "2", Email: "s@example.com"}}, location: "/dashboard"},
		{name: "admin", session: Session{State: StateAuthenticated, Identity: &Identity{Subject: "1", Email: "boss@example.com"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req = req.WithContext(WithSession(req.Context(), tt.session))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if tt.location == "" {
				if !reached {
					t.Fatalf("expected admin to reach handler, got %d", rr.Code)
				}
				return
			}
			if reached || rr.Header().Get("Location") != tt.location {
				t.Fatalf("expected redirect to %s, got %q", tt.location, rr.Header().Get("Location"))
			}
		})
	}
}

func TestSessionFromContextDefaultsToLoading(t *testing.T) {
	if s := SessionFromContext(context.Background()); s.State != StateLoading || s.Authenticated() {
		t.Fatalf("expected loading session, got %+v", s)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (Identity{Name: " Ada "}).DisplayName(); got != "Ada" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := (Identity{Email: "grace@example.com"}).DisplayName(); got != "grace" {
		t.Fatalf("unexpected display name %q", got)
	}
}
