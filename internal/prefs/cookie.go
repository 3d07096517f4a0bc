package prefs

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"

	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
)

const (
	CookieName = "tuition_prefs"
	cookieTTL  = 365 * 24 * time.Hour
)

// CookieStore keeps preferences in an encrypted cookie. Reads come from the
// request; every Set rewrites the response cookie.
type CookieStore struct {
	codec  *securecookie.SecureCookie
	secure bool
	w      http.ResponseWriter
	ctx    context.Context
	values map[string]string
}

// NewCookieStore decodes the preferences cookie of r. A missing or
// undecodable cookie starts from empty preferences.
func NewCookieStore(codec *securecookie.SecureCookie, secure bool, w http.ResponseWriter, r *http.Request) *CookieStore {
	s := &CookieStore{codec: codec, secure: secure, w: w, ctx: r.Context(), values: map[string]string{}}
	if c, err := r.Cookie(CookieName); err == nil {
		var values map[string]string
		if err := codec.Decode(CookieName, c.Value, &values); err == nil && values != nil {
			s.values = values
		}
	}
	return s
}

func (s *CookieStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *CookieStore) Set(key, value string) {
	s.values[key] = value
	encoded, err := s.codec.Encode(CookieName, s.values)
	if err != nil {
		httperrors.LogWarn(s.ctx, "preferences not saved", err)
		return
	}
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	replaceCookie(s.w.Header(), cookie)
}

// replaceCookie drops any Set-Cookie already queued for the same name so
// that several Sets in one request emit a single cookie.
func replaceCookie(h http.Header, cookie *http.Cookie) {
	prefix := cookie.Name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if strings.HasPrefix(v, prefix) {
			continue
		}
		kept = append(kept, v)
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	h.Add("Set-Cookie", cookie.String())
}
