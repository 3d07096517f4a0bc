package ui

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jw6ventures/tuition/internal/auth"
	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/live"
	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/validation"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamReadLimit  = 512
)

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := h.pageData(w, r, "Dashboard")

	notes, err := h.store.Notes.List(ctx, store.NoteFilter{})
	if err != nil {
		logError(r, "load notes", err)
	}
	data["NoteCount"] = len(notes)
	data["Subjects"] = subjectNames(notes)
	data["Upcoming"] = h.upcomingExams(r)

	h.render(w, r, "dashboard.html", data)
}

// threadFromQuery reads ?thread=general|subject&subject=NAME. A missing
// thread parameter selects the general thread.
func threadFromQuery(q url.Values) (store.ThreadKey, error) {
	var key store.ThreadKey
	switch q.Get("thread") {
	case "", "general":
		key = store.GeneralThread()
	case "subject":
		key = store.SubjectThread(q.Get("subject"))
	default:
		return store.ThreadKey{}, store.ErrInvalidThread
	}
	return key, key.Validate()
}

func threadQuery(key store.ThreadKey) string {
	q := url.Values{}
	if key.IsGeneral {
		q.Set("thread", "general")
	} else {
		q.Set("thread", "subject")
		q.Set("subject", key.SubjectName)
	}
	return q.Encode()
}

func (h *Handler) ChatPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := threadFromQuery(r.URL.Query())
	if err != nil {
		httperrors.BadRequestError(w, r, err, "unknown chat thread")
		return
	}

	messages, err := h.store.ChatMessages.ListThread(ctx, key)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load messages")
		return
	}
	notes, err := h.store.Notes.List(ctx, store.NoteFilter{})
	if err != nil {
		logError(r, "load notes", err)
	}

	data := h.pageData(w, r, "Chat")
	data["Thread"] = key
	data["Subjects"] = subjectNames(notes)
	data["Messages"] = messages
	data["MaxLength"] = h.cfg.ChatMaxLength
	data["StreamQuery"] = "?" + threadQuery(key)
	h.render(w, r, "chat.html", data)
}

// SendChatMessage posts to a thread. Script clients asking for JSON get the
// created message or an error object; plain form posts are redirected back
// to the thread with a notice.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid form")
		return
	}
	key, err := threadFromQuery(r.PostForm)
	if err != nil {
		h.chatFailure(w, r, store.GeneralThread(), http.StatusBadRequest, "Unknown chat thread.")
		return
	}
	id, _ := auth.IdentityFromContext(ctx)

	msg, err := h.chat.Send(ctx, id, key, r.PostFormValue("content"))
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			h.chatFailure(w, r, key, http.StatusBadRequest, verrs.Error())
		case errors.Is(err, live.ErrUnauthenticated):
			h.chatFailure(w, r, key, http.StatusUnauthorized, err.Error())
		default:
			logError(r, "send chat message", err)
			h.chatFailure(w, r, key, http.StatusInternalServerError, "Message not sent. Please try again.")
		}
		return
	}

	if wantsJSON(r) {
		h.writeJSON(w, http.StatusCreated, messageView(*msg))
		return
	}
	http.Redirect(w, r, "/chat?"+threadQuery(key), http.StatusFound)
}

func (h *Handler) chatFailure(w http.ResponseWriter, r *http.Request, key store.ThreadKey, status int, message string) {
	if wantsJSON(r) {
		h.writeJSON(w, status, map[string]string{"error": message})
		return
	}
	http.Redirect(w, r, "/chat?"+threadQuery(key)+"&error="+url.QueryEscape(message), http.StatusFound)
}

type chatMessageView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

type threadSnapshot struct {
	Thread   string            `json:"thread"`
	Messages []chatMessageView `json:"messages"`
}

func messageView(m store.ChatMessage) chatMessageView {
	return chatMessageView{
		ID:        m.ID,
		Content:   m.Content,
		UserID:    m.UserID,
		UserName:  m.UserName,
		CreatedAt: m.CreatedAt,
	}
}

// ChatStream upgrades to a websocket and pushes a full snapshot of the
// thread whenever it changes. Messages from the client are ignored; reading
// only serves to notice the peer going away.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	key, err := threadFromQuery(r.URL.Query())
	if err != nil {
		httperrors.BadRequestError(w, r, err, "unknown chat thread")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logError(r, "upgrade chat stream", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(fn func() error) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return fn()
	}

	unsubscribe, err := h.hub.Subscribe(key, func(messages []store.ChatMessage) {
		snap := threadSnapshot{Thread: key.String(), Messages: make([]chatMessageView, 0, len(messages))}
		for _, m := range messages {
			snap.Messages = append(snap.Messages, messageView(m))
		}
		if err := write(func() error { return conn.WriteJSON(snap) }); err != nil {
			conn.Close()
		}
	})
	if err != nil {
		logError(r, "subscribe chat stream", err)
		return
	}
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
