package ui

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/websocket"

	"github.com/jw6ventures/tuition/internal/auth"
	"github.com/jw6ventures/tuition/internal/config"
	"github.com/jw6ventures/tuition/internal/live"
	"github.com/jw6ventures/tuition/internal/prefs"
	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/validation"
)

const prefsTTL = 365 * 24 * time.Hour

// Handler serves the server-rendered pages and the chat stream.
type Handler struct {
	cfg        *config.Config
	store      *store.Store
	roles      *auth.Resolver
	hub        *live.Hub
	chat       *live.ChatService
	validate   *validation.Validator
	prefsCodec *securecookie.SecureCookie
	templates  map[string]*template.Template
	upgrader   websocket.Upgrader
	now        func() time.Time
}

func NewHandler(cfg *config.Config, store *store.Store, roles *auth.Resolver, hub *live.Hub, chat *live.ChatService) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      store,
		roles:      roles,
		hub:        hub,
		chat:       chat,
		validate:   validation.New(cfg.ChatMaxLength),
		prefsCodec: auth.DeriveCodec(cfg.Session.Secret, "prefs", prefsTTL),
		templates:  templates,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now: time.Now,
	}
}

// prefs returns the device preferences of the requesting browser.
func (h *Handler) prefs(w http.ResponseWriter, r *http.Request) *prefs.Preferences {
	return prefs.New(prefs.NewCookieStore(h.prefsCodec, h.cfg.SecureCookies(), w, r))
}

// pageData collects what the shared layout needs: identity, role, device
// preferences, the announcements dropdown, flash notices and the CSRF token.
func (h *Handler) pageData(w http.ResponseWriter, r *http.Request, title string) map[string]any {
	ctx := r.Context()
	session := auth.SessionFromContext(ctx)
	p := h.prefs(w, r)

	data := map[string]any{
		"Title":                title,
		"Path":                 r.URL.Path,
		"Identity":             session.Identity,
		"IsAdmin":              h.isAdmin(r),
		"DarkMode":             p.DarkMode(),
		"NotificationsEnabled": p.NotificationsEnabled(),
	}

	announcements, err := h.store.Announcements.List(ctx)
	if err != nil {
		logError(r, "load announcements", err)
	}
	data["Announcements"] = announcements

	return h.withFlash(r, data)
}

func (h *Handler) isAdmin(r *http.Request) bool {
	if role, ok := auth.RoleFromContext(r.Context()); ok {
		return role == auth.RoleAdmin
	}
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || h.roles == nil {
		return false
	}
	return h.roles.ResolveRole(r.Context(), *id) == auth.RoleAdmin
}
