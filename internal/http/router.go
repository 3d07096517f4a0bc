package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/tuition/internal/auth"
	"github.com/jw6ventures/tuition/internal/config"
	"github.com/jw6ventures/tuition/internal/http/csrf"
	"github.com/jw6ventures/tuition/internal/http/ratelimit"
	"github.com/jw6ventures/tuition/internal/live"
	"github.com/jw6ventures/tuition/internal/metrics"
	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/ui"
)

const limiterCleanup = 5 * time.Minute

// Router serves the portal. Close stops its background rate limiter loops.
type Router struct {
	http.Handler
	limiters []*ratelimit.Limiter
}

func (rt *Router) Close() {
	for _, l := range rt.limiters {
		l.Stop()
	}
}

// NewRouter wires the public pages, the member area, the admin panel and the
// operational endpoints.
func NewRouter(cfg *config.Config, store *store.Store, authService *auth.Service, hub *live.Hub, chat *live.ChatService) *Router {
	r := chi.NewRouter()

	// Sign-in endpoints: 5 requests per second, burst of 10 per client address.
	authLimiter := ratelimit.New(rate.Limit(5), 10, limiterCleanup, ratelimit.ClientIP(cfg.TrustedProxies))
	// Chat posts: one message per second, burst of 5 per account.
	chatLimiter := ratelimit.New(rate.Limit(1), 5, limiterCleanup, ratelimit.SubjectOrIP(cfg.TrustedProxies))

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(overrideMethod)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	uiHandler := ui.NewHandler(cfg, store, authService.Resolver(), hub, chat)

	r.Group(func(r chi.Router) {
		r.Use(authService.LoadSession)
		r.Use(csrf.Middleware(cfg))

		r.Get("/", uiHandler.Home)
		r.Get("/notes", uiHandler.Notes)
		r.Get("/notes/{id}", uiHandler.Notes)
		r.Post("/notes/{id}/download", uiHandler.DownloadNote)
		r.Get("/schedule", uiHandler.Schedule)
		r.Get("/schedule.ics", uiHandler.ExamCalendar)
		r.Post("/preferences/dark-mode", uiHandler.ToggleDarkMode)
		r.Post("/preferences/notifications", uiHandler.ToggleNotifications)
		r.Get("/chat", uiHandler.ChatPage)
		r.Get("/chat/stream", uiHandler.ChatStream)

		r.Get("/auth", uiHandler.AuthPage)
		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Get("/auth/login", authService.BeginLogin)
			r.Get("/auth/callback", authService.HandleCallback)
		})
		r.Post("/auth/logout", authService.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireSession)
			r.Get("/dashboard", uiHandler.Dashboard)
			r.With(chatLimiter.Middleware).Post("/chat/messages", uiHandler.SendChatMessage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authService.RequireAdmin)
			r.Get("/", uiHandler.AdminOverview)

			r.Get("/notes", uiHandler.AdminNotes)
			r.Post("/notes", uiHandler.CreateNote)
			r.Put("/notes/{id}", uiHandler.UpdateNote)
			r.Delete("/notes/{id}", uiHandler.DeleteNote)

			r.Get("/semesters", uiHandler.AdminSemesters)
			r.Post("/semesters", uiHandler.CreateSemester)
			r.Put("/semesters/{id}", uiHandler.UpdateSemester)
			r.Delete("/semesters/{id}", uiHandler.DeleteSemester)

			r.Get("/timetable", uiHandler.AdminTimetable)
			r.Post("/timetable", uiHandler.CreateSchedule)
			r.Post("/timetable/reminders", uiHandler.SendReminders)
			r.Put("/timetable/{id}", uiHandler.UpdateSchedule)
			r.Delete("/timetable/{id}", uiHandler.DeleteSchedule)

			r.Get("/announcements", uiHandler.AdminAnnouncements)
			r.Post("/announcements", uiHandler.CreateAnnouncement)
		})
	})

	return &Router{Handler: r, limiters: []*ratelimit.Limiter{authLimiter, chatLimiter}}
}

// overrideMethod lets HTML forms issue PUT and DELETE through a _method
// field on a POST.
func overrideMethod(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			m := strings.TrimSpace(r.PostFormValue("_method"))
			if m == "" {
				m = strings.TrimSpace(r.URL.Query().Get("_method"))
			}
			switch strings.ToUpper(m) {
			case http.MethodPut, http.MethodDelete:
				r.Method = strings.ToUpper(m)
			}
		}
		next.ServeHTTP(w, r)
	})
}
