package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	ProviderGoogle = "google"

	ScopeEmail    = "https://www.googleapis.com/auth/userinfo.email"
	ScopeProfile  = "https://www.googleapis.com/auth/userinfo.profile"
	ScopeCalendar = "https://www.googleapis.com/auth/calendar"
)

func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{ScopeEmail, ScopeProfile, ScopeCalendar},
		Endpoint:     google.Endpoint,
	}
}

// GoogleProfile is the subset of the userinfo response used to fill a user.
type GoogleProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

type Google struct {
	cfg  *oauth2.Config
	opts []option.ClientOption
}

// NewGoogle wraps cfg. opts are appended to userinfo client options.
func NewGoogle(cfg *oauth2.Config, opts ...option.ClientOption) *Google {
	return &Google{cfg: cfg, opts: opts}
}

func (g *Google) Config() *oauth2.Config { return g.cfg }

// AuthCodeURL asks for offline access with forced consent so a refresh token
// is returned on every link.
func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google exchange: %w", err)
	}
	return tok, nil
}

func (g *Google) Profile(ctx context.Context, tok *oauth2.Token) (*GoogleProfile, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(g.cfg.TokenSource(ctx, tok))}, g.opts...)
	svc, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	return &GoogleProfile{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// GrantedScope reads the space separated scope list the token endpoint returned.
func GrantedScope(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}

func HasCalendarScope(scope string) bool {
	for _, s := range strings.Fields(scope) {
		if s == ScopeCalendar {
			return true
		}
	}
	return false
}
