package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/jw6ventures/tuition/internal/auth"
	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/validation"
)

var ErrUnauthenticated = errors.New("sign in to send messages")

// ChatService posts messages and announces them to listeners.
type ChatService struct {
	messages store.ChatMessageRepository
	notifier Notifier
	validate *validation.Validator
}

func NewChatService(messages store.ChatMessageRepository, notifier Notifier, v *validation.Validator) *ChatService {
	return &ChatService{messages: messages, notifier: notifier, validate: v}
}

// Send stores content in the thread for key, attributed to id. A failed
// notification is logged; the message itself is already saved and will show
// up on the next snapshot of the thread.
func (s *ChatService) Send(ctx context.Context, id *auth.Identity, key store.ThreadKey, content string) (*store.ChatMessage, error) {
	if id == nil || id.Subject == "" {
		return nil, ErrUnauthenticated
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	text, err := s.validate.ChatContent(content)
	if err != nil {
		return nil, err
	}

	msg := store.ChatMessage{
		Content:   text,
		UserID:    id.Subject,
		UserName:  id.DisplayName(),
		IsGeneral: key.IsGeneral,
	}
	if !key.IsGeneral {
		subject := key.SubjectName
		msg.SubjectName = &subject
	}
	created, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, key); err != nil {
		httperrors.LogWarn(ctx, fmt.Sprintf("notify %s", key), err)
	}
	return created, nil
}
