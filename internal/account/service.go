// Package account covers onboarding (username claim, Google link), sessions
// and the public profile.
package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/auth"
	"schedule-booking-api/internal/clock"
	"schedule-booking-api/internal/model"
	"schedule-booking-api/internal/store"
)

var ErrMissingCalendarScope = errors.New("calendar permission was not granted")

type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateBio(ctx context.Context, userID, bio string) error

	AccountByProvider(ctx context.Context, provider, providerAccountID string) (*model.Account, error)
	LinkAccount(ctx context.Context, a *model.Account, name, email, avatarURL string) error
	UpdateAccountTokens(ctx context.Context, accountID, accessToken, refreshToken string, expiresAt *time.Time, scope string) error

	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID, newID, userID, newHash string, newExpiry time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// Identity is the external sign-in provider.
type Identity interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Profile(ctx context.Context, tok *oauth2.Token) (*auth.GoogleProfile, error)
}

type Service struct {
	store    Store
	identity Identity
	secret   string
	clock    clock.Clock
	validate *validator.Validate
	log      *zap.Logger
}

func NewService(st Store, identity Identity, secret string, clk clock.Clock, log *zap.Logger) *Service {
	v := validator.New()
	err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic("account: register username validation: " + err.Error())
	}
	return &Service{store: st, identity: identity, secret: secret, clock: clk, validate: v, log: log}
}

var usernamePattern = regexp.MustCompile(`^[a-z-]+$`)

type RegisterInput struct {
	Username string `json:"username" validate:"min=3,username"`
	Name     string `json:"name" validate:"min=3"`
}

// Register claims a username. The returned user has no linked identity yet.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation(registerMessage(err))
	}

	u := &model.User{ID: uuid.New().String(), Username: in.Username, Name: in.Name}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("username already taken")
		}
		return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
	}
	s.log.Info("username claimed", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

func registerMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch {
		case verrs[0].Field() == "Username" && verrs[0].Tag() == "username":
			return "username may only contain letters and hyphens"
		case verrs[0].Field() == "Username":
			return "username must have at least 3 characters"
		case verrs[0].Field() == "Name":
			return "name must have at least 3 characters"
		}
	}
	return "invalid input"
}

type Session struct {
	UserID           string
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// CompleteGoogleSignIn finishes the OAuth code flow. A known Google account
// gets its tokens refreshed; an unknown one is linked to pendingUserID, the
// user that just claimed a username.
func (s *Service) CompleteGoogleSignIn(ctx context.Context, code, pendingUserID string) (*Session, error) {
	tok, err := s.identity.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "google sign-in failed")
	}
	scope := auth.GrantedScope(tok)
	if !auth.HasCalendarScope(scope) {
		return nil, ErrMissingCalendarScope
	}
	profile, err := s.identity.Profile(ctx, tok)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		expiry = &e
	}

	var userID string
	acct, err := s.store.AccountByProvider(ctx, auth.ProviderGoogle, profile.ID)
	switch {
	case err == nil:
		if err := s.store.UpdateAccountTokens(ctx, acct.ID, tok.AccessToken, tok.RefreshToken, expiry, scope); err != nil {
			return nil, apperr.Internal(fmt.Errorf("update tokens: %w", err))
		}
		userID = acct.UserID
	case errors.Is(err, store.ErrNotFound):
		if pendingUserID == "" {
			return nil, apperr.New(apperr.KindUnauthenticated, "claim a username before connecting google")
		}
		idToken, _ := tok.Extra("id_token").(string)
		a := &model.Account{
			UserID:            pendingUserID,
			Provider:          auth.ProviderGoogle,
			ProviderAccountID: profile.ID,
			AccessToken:       tok.AccessToken,
			RefreshToken:      tok.RefreshToken,
			ExpiresAt:         expiry,
			Scope:             scope,
			TokenType:         tok.TokenType,
			IDToken:           idToken,
		}
		err := s.store.LinkAccount(ctx, a, profile.Name, profile.Email, profile.Picture)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.New(apperr.KindUnauthenticated, "pending user no longer exists")
		case errors.Is(err, store.ErrDuplicate):
			return nil, apperr.New(apperr.KindConflict, "this google account is already linked to another user")
		case err != nil:
			return nil, apperr.Internal(fmt.Errorf("link account: %w", err))
		}
		userID = pendingUserID
		s.log.Info("google account linked", zap.String("user_id", userID))
	default:
		return nil, apperr.Internal(fmt.Errorf("find account: %w", err))
	}

	return s.IssueSession(ctx, userID)
}

// IssueSession mints an access token and a fresh refresh token.
func (s *Service) IssueSession(ctx context.Context, userID string) (*Session, error) {
	access, err := auth.MakeToken(userID, s.secret)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("sign token: %w", err))
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	exp := s.clock.Now().Add(auth.RefreshTTL)
	if _, err := s.store.CreateRefreshToken(ctx, userID, hash, exp); err != nil {
		return nil, apperr.Internal(fmt.Errorf("store refresh token: %w", err))
	}
	return &Session{UserID: userID, AccessToken: access, RefreshToken: raw, RefreshExpiresAt: exp}, nil
}

// Refresh rotates a refresh token. Presenting an already rotated token is
// treated as theft and revokes every session of the user.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "no refresh token")
	}
	rt, err := s.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindUnauthenticated, "invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find refresh token: %w", err))
	}
	if rt.Revoked {
		s.revokeAll(ctx, rt.UserID, "refresh token reuse")
		return nil, apperr.New(apperr.KindUnauthenticated, "invalid refresh token")
	}
	if !rt.ExpiresAt.After(s.clock.Now()) {
		return nil, apperr.New(apperr.KindUnauthenticated, "refresh token expired")
	}

	newRaw, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	exp := s.clock.Now().Add(auth.RefreshTTL)
	err = s.store.RotateRefreshToken(ctx, rt.ID, uuid.New().String(), rt.UserID, newHash, exp)
	if errors.Is(err, store.ErrNotFound) {
		s.revokeAll(ctx, rt.UserID, "concurrent refresh token rotation")
		return nil, apperr.New(apperr.KindUnauthenticated, "invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("rotate refresh token: %w", err))
	}

	access, err := auth.MakeToken(rt.UserID, s.secret)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("sign token: %w", err))
	}
	return &Session{UserID: rt.UserID, AccessToken: access, RefreshToken: newRaw, RefreshExpiresAt: exp}, nil
}

func (s *Service) revokeAll(ctx context.Context, userID, reason string) {
	s.log.Warn("revoking all sessions", zap.String("user_id", userID), zap.String("reason", reason))
	if err := s.store.RevokeAllRefreshTokens(ctx, userID); err != nil {
		s.log.Error("revoke sessions failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Logout revokes every refresh token of the token's owner. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	rt, err := s.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("find refresh token: %w", err))
	}
	if err := s.store.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
		return apperr.Internal(fmt.Errorf("revoke refresh tokens: %w", err))
	}
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID, bio string) error {
	if userID == "" {
		return apperr.ErrUnauthenticated
	}
	err := s.store.UpdateBio(ctx, userID, strings.TrimSpace(bio))
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("update bio: %w", err))
	}
	return nil
}

// PublicProfile returns the user behind a booking page. Profiles missing a
// name, bio or avatar are reported as not found.
func (s *Service) PublicProfile(ctx context.Context, username string) (*model.User, error) {
	u, err := s.store.UserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	if !u.ProfileComplete() {
		return nil, apperr.ErrUserNotFound
	}
	return u, nil
}

// Me returns the signed-in user.
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	return u, nil
}
