package auth

import "strings"

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// DisplayName is what chat messages are attributed to.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	if i.Email != "" {
		return strings.SplitN(i.Email, "@", 2)[0]
	}
	return "Anonymous"
}

// Role is derived per request from the admin allow-list. It is never stored
// in the session cookie.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// SessionState tracks whether the identity of a request is known yet.
type SessionState int

const (
	StateLoading SessionState = iota
	StateAnonymous
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// Session is the resolved authentication state of one request.
type Session struct {
	State    SessionState
	Identity *Identity
}

func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && s.Identity != nil
}
