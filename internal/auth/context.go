package auth

import "context"

type contextKey string

const (
	contextKeySession contextKey = "session"
	contextKeyRole    contextKey = "role"
)

func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, contextKeySession, session)
}

// SessionFromContext returns the request session, or a Loading session when
// LoadSession has not run.
func SessionFromContext(ctx context.Context) Session {
	s, ok := ctx.Value(contextKeySession).(Session)
	if !ok {
		return Session{State: StateLoading}
	}
	return s
}

// IdentityFromContext returns the signed-in identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	s := SessionFromContext(ctx)
	if !s.Authenticated() {
		return nil, false
	}
	return s.Identity, true
}

func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, contextKeyRole, role)
}

// RoleFromContext returns the role resolved by RequireAdmin or LoadRole.
func RoleFromContext(ctx context.Context) (Role, bool) {
	r, ok := ctx.Value(contextKeyRole).(Role)
	return r, ok
}
