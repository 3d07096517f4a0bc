package store

import (
	"errors"
	"strings"
)

const (
	generalThreadName = "general"
	subjectPrefix     = "subject:"
)

// ErrInvalidThread is returned for a subject thread without a subject name.
var ErrInvalidThread = errors.New("invalid thread key")

// ThreadKey identifies a chat partition: the general thread, or one subject.
type ThreadKey struct {
	IsGeneral   bool
	SubjectName string
}

func GeneralThread() ThreadKey {
	return ThreadKey{IsGeneral: true}
}

func SubjectThread(name string) ThreadKey {
	return ThreadKey{SubjectName: strings.TrimSpace(name)}
}

func (k ThreadKey) Validate() error {
	if k.IsGeneral {
		if k.SubjectName != "" {
			return ErrInvalidThread
		}
		return nil
	}
	if strings.TrimSpace(k.SubjectName) == "" {
		return ErrInvalidThread
	}
	return nil
}

// Matches reports whether msg belongs to the thread.
func (k ThreadKey) Matches(msg ChatMessage) bool {
	if k.IsGeneral {
		return msg.IsGeneral
	}
	return !msg.IsGeneral && msg.SubjectName != nil && *msg.SubjectName == k.SubjectName
}

// String encodes the key for change-feed payloads.
func (k ThreadKey) String() string {
	if k.IsGeneral {
		return generalThreadName
	}
	return subjectPrefix + k.SubjectName
}

// ParseThreadKey is the inverse of ThreadKey.String.
func ParseThreadKey(s string) (ThreadKey, error) {
	var key ThreadKey
	switch {
	case s == generalThreadName:
		key = GeneralThread()
	case strings.HasPrefix(s, subjectPrefix):
		key = ThreadKey{SubjectName: strings.TrimPrefix(s, subjectPrefix)}
	default:
		return ThreadKey{}, ErrInvalidThread
	}
	if err := key.Validate(); err != nil {
		return ThreadKey{}, err
	}
	return key, nil
}
