// Package csrf implements double-submit CSRF protection for form posts and
// script requests.
package csrf

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"

	"github.com/jw6ventures/tuition/internal/config"
	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
)

type contextKey struct{}

const (
	CookieName = "tuition_csrf"
	HeaderName = "X-CSRF-Token"
	FormField  = "_csrf"
)

var errInvalidToken = errors.New("invalid csrf token")

// Middleware issues a token cookie on first visit and requires the same
// token in the X-CSRF-Token header or the _csrf form field on every
// state-changing request.
func Middleware(cfg *config.Config) func(http.Handler) http.Handler {
	secure := cfg.SecureCookies()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				token = newToken()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if isStateChanging(r.Method) && !valid(token, submitted(r)) {
				httperrors.LogWarn(r.Context(), "rejected "+r.Method+" "+r.URL.Path, errInvalidToken)
				http.Error(w, errInvalidToken.Error(), http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext returns the token to embed in forms and page metadata.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

func submitted(r *http.Request) string {
	if v := r.Header.Get(HeaderName); v != "" {
		return v
	}
	return r.FormValue(FormField)
}

func valid(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func newToken() string {
	return base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
