package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jw6ventures/tuition/internal/config"
	httperrors "github.com/jw6ventures/tuition/internal/http/errors"
)

const discoverySuffix = "/.well-known/openid-configuration"

// oauthClient is the part of oauth2.Config used by the login flow.
type oauthClient interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

type idClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Nonce   string `json:"nonce"`
}

type verifyFunc func(ctx context.Context, rawIDToken string) (idClaims, error)

// Service runs the OpenID Connect sign-in flow and guards routes by session
// and role.
type Service struct {
	oauth    oauthClient
	verify   verifyFunc
	sessions *SessionManager
	resolver *Resolver
}

// NewService discovers the provider and prepares the authorization code flow.
func NewService(ctx context.Context, cfg *config.Config, sessions *SessionManager, resolver *Resolver) (*Service, error) {
	issuer := cfg.OAuth.IssuerURL
	if issuer == "" {
		issuer = strings.TrimSuffix(cfg.OAuth.DiscoveryURL, discoverySuffix)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, &AuthError{Op: "discover", Err: err}
	}

	oc := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.BaseURL + cfg.OAuth.RedirectPath,
		Scopes:       cfg.OAuth.Scopes,
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID})
	verify := func(ctx context.Context, raw string) (idClaims, error) {
		token, err := verifier.Verify(ctx, raw)
		if err != nil {
			return idClaims{}, err
		}
		var claims idClaims
		if err := token.Claims(&claims); err != nil {
			return idClaims{}, err
		}
		claims.Nonce = token.Nonce
		return claims, nil
	}
	return newService(oc, verify, sessions, resolver), nil
}

func newService(oauth oauthClient, verify verifyFunc, sessions *SessionManager, resolver *Resolver) *Service {
	return &Service{oauth: oauth, verify: verify, sessions: sessions, resolver: resolver}
}

// Resolver exposes the role resolver for views that adapt to the role.
func (s *Service) Resolver() *Resolver { return s.resolver }

// BeginLogin redirects to the identity provider.
func (s *Service) BeginLogin(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.issueState(w)
	if err != nil {
		httperrors.InternalError(w, r, &AuthError{Op: "begin", Err: err}, "failed to start sign-in")
		return
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(state.State, oidc.Nonce(state.Nonce)), http.StatusFound)
}

// HandleCallback completes sign-in and sends admins to /admin and everyone
// else to /dashboard.
func (s *Service) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := s.completeLogin(ctx, w, r)
	if err != nil {
		httperrors.LogError(ctx, "sign-in failed", err)
		http.Redirect(w, r, "/auth?error="+url.QueryEscape("Sign-in failed. Please try again."), http.StatusFound)
		return
	}
	if err := s.sessions.Issue(w, id); err != nil {
		httperrors.InternalError(w, r, &AuthError{Op: "issue session", Err: err}, "failed to start session")
		return
	}
	httperrors.LogInfo(ctx, fmt.Sprintf("signed in %s", id.Email))

	if s.resolver.ResolveRole(ctx, id) == RoleAdmin {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Service) completeLogin(ctx context.Context, w http.ResponseWriter, r *http.Request) (Identity, error) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		return Identity{}, &AuthError{Op: "callback", Err: fmt.Errorf("provider returned %s", providerErr)}
	}
	state, err := s.sessions.consumeState(w, r, q.Get("state"))
	if err != nil {
		return Identity{}, &AuthError{Op: "callback", Err: err}
	}
	token, err := s.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		return Identity{}, &AuthError{Op: "exchange", Err: err}
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return Identity{}, &AuthError{Op: "exchange", Err: ErrMissingToken}
	}
	claims, err := s.verify(ctx, raw)
	if err != nil {
		return Identity{}, &AuthError{Op: "verify", Err: err}
	}
	if claims.Nonce != state.Nonce {
		return Identity{}, &AuthError{Op: "verify", Err: fmt.Errorf("nonce mismatch")}
	}
	if strings.TrimSpace(claims.Email) == "" {
		return Identity{}, &AuthError{Op: "verify", Err: ErrNoEmail}
	}
	return Identity{
		Subject: claims.Subject,
		Email:   strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:    strings.TrimSpace(claims.Name),
	}, nil
}

// Logout ends the session and returns to the home page.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := IdentityFromContext(r.Context()); ok {
		httperrors.LogInfo(r.Context(), fmt.Sprintf("signed out %s", id.Email))
	}
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// LoadSession resolves the session cookie for every request.
func (s *Service) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithSession(r.Context(), s.sessions.Load(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession sends anonymous visitors to the sign-in page.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromContext(r.Context()).Authenticated() {
			http.Redirect(w, r, "/auth", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin re-resolves the role on every request; members are sent to
// their dashboard.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return s.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		role := s.resolver.ResolveRole(r.Context(), *id)
		if role != RoleAdmin {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
	}))
}
