package auth

import (
	"context"
	"strings"

	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
	"github.com/jw6ventures/tuition/internal/metrics"
)

// AdminLookup reports whether an email is on the admin allow-list.
type AdminLookup interface {
	Exists(ctx context.Context, email string) (bool, error)
}

// Resolver maps identities to roles.
type Resolver struct {
	admins AdminLookup
}

func NewResolver(admins AdminLookup) *Resolver {
	return &Resolver{admins: admins}
}

// ResolveRole returns RoleAdmin when the identity's email is on the
// allow-list and RoleMember otherwise, including when the lookup fails.
func (r *Resolver) ResolveRole(ctx context.Context, id Identity) Role {
	email := strings.TrimSpace(id.Email)
	if email == "" || r.admins == nil {
		metrics.RoleLookup(string(RoleMember))
		return RoleMember
	}
	ok, err := r.admins.Exists(ctx, email)
	if err != nil {
		httperrors.LogError(ctx, "resolve role", &RoleLookupError{Email: email, Err: err})
		metrics.RoleLookup("error")
		return RoleMember
	}
	if ok {
		metrics.RoleLookup(string(RoleAdmin))
		return RoleAdmin
	}
	metrics.RoleLookup(string(RoleMember))
	return RoleMember
}
