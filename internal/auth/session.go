package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"

	"github.com/jw6ventures/tuition/internal/config"
)

const (
	sessionCookieName = "tuition_session"
	stateCookieName   = "tuition_oauth_state"

	sessionTTL = 7 * 24 * time.Hour
	stateTTL   = 10 * time.Minute
)

// DeriveCodec builds a securecookie codec whose hash and block keys are
// derived from secret with HKDF, bound to purpose so that codecs for
// different cookies never share keys.
func DeriveCodec(secret, purpose string, maxAge time.Duration) *securecookie.SecureCookie {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("tuition/"+purpose))
	hashKey := make([]byte, 32)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		panic("hkdf: " + err.Error())
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		panic("hkdf: " + err.Error())
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return sc
}

type sessionPayload struct {
	Identity Identity `json:"identity"`
	Exp      int64    `json:"exp"`
}

type statePayload struct {
	State string `json:"state"`
	Nonce string `json:"nonce"`
	Exp   int64  `json:"exp"`
}

// SessionManager stores the signed-in identity in an encrypted cookie.
type SessionManager struct {
	session *securecookie.SecureCookie
	state   *securecookie.SecureCookie
	secure  bool
	now     func() time.Time
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	return &SessionManager{
		session: DeriveCodec(cfg.Session.Secret, "session", sessionTTL),
		state:   DeriveCodec(cfg.Session.Secret, "oauth-state", stateTTL),
		secure:  cfg.SecureCookies(),
		now:     time.Now,
	}
}

// Issue starts a session for id.
func (m *SessionManager) Issue(w http.ResponseWriter, id Identity) error {
	expires := m.now().Add(sessionTTL)
	encoded, err := m.session.Encode(sessionCookieName, sessionPayload{Identity: id, Exp: expires.Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Load resolves the request's session. It never fails: a missing, tampered,
// or expired cookie yields an anonymous session.
func (m *SessionManager) Load(r *http.Request) Session {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return Session{State: StateAnonymous}
	}
	var payload sessionPayload
	if err := m.session.Decode(sessionCookieName, c.Value, &payload); err != nil {
		return Session{State: StateAnonymous}
	}
	if payload.Exp <= m.now().Unix() || payload.Identity.Subject == "" {
		return Session{State: StateAnonymous}
	}
	id := payload.Identity
	return Session{State: StateAuthenticated, Identity: &id}
}

// issueState stores a fresh state and nonce for the login round trip.
func (m *SessionManager) issueState(w http.ResponseWriter) (statePayload, error) {
	payload := statePayload{
		State: randomToken(),
		Nonce: randomToken(),
		Exp:   m.now().Add(stateTTL).Unix(),
	}
	encoded, err := m.state.Encode(stateCookieName, payload)
	if err != nil {
		return statePayload{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return payload, nil
}

// consumeState reads and clears the login state cookie, checking it against
// the state echoed by the identity provider.
func (m *SessionManager) consumeState(w http.ResponseWriter, r *http.Request, echoed string) (statePayload, error) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return statePayload{}, ErrStateMismatch
	}
	var payload statePayload
	if err := m.state.Decode(stateCookieName, c.Value, &payload); err != nil {
		return statePayload{}, ErrStateMismatch
	}
	if payload.Exp <= m.now().Unix() {
		return statePayload{}, errors.New("login attempt expired")
	}
	if echoed == "" || echoed != payload.State {
		return statePayload{}, ErrStateMismatch
	}
	return payload, nil
}

func randomToken() string {
	return base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
}
