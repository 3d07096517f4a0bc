package auth

import (
	"errors"
	"fmt"
)

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrMissingToken  = errors.New("id token missing from token response")
	ErrNoEmail       = errors.New("identity provider returned no email")
)

// AuthError reports a failed sign-in or sign-out step.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RoleLookupError reports a failed admin check. It is logged and recovered
// by treating the identity as a member.
type RoleLookupError struct {
	Email string
	Err   error
}

func (e *RoleLookupError) Error() string {
	return fmt.Sprintf("role lookup for %s: %v", e.Email, e.Err)
}

func (e *RoleLookupError) Unwrap() error { return e.Err }
