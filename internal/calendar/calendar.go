// Package calendar pushes committed bookings to the host's Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"schedule-booking-api/internal/auth"
	"schedule-booking-api/internal/model"
	"schedule-booking-api/internal/store"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrNoAccount       = errors.New("host has no linked google account")
)

// Permanent reports whether retrying CreateEvent can never succeed.
func Permanent(err error) bool {
	if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrNoAccount) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusNotFound
	}
	return false
}

type Store interface {
	BookingByID(ctx context.Context, id string) (*model.Booking, error)
	AccountForUser(ctx context.Context, userID, provider string) (*model.Account, error)
	UpdateAccountTokens(ctx context.Context, accountID, accessToken, refreshToken string, expiresAt *time.Time, scope string) error
}

type Client struct {
	store Store
	oauth *oauth2.Config
	loc   *time.Location
	log   *zap.Logger
	opts  []option.ClientOption
}

// New builds a Client. opts are appended to every calendar service it opens.
func New(st Store, oauthCfg *oauth2.Config, loc *time.Location, log *zap.Logger, opts ...option.ClientOption) *Client {
	return &Client{store: st, oauth: oauthCfg, loc: loc, log: log, opts: opts}
}

// EventID derives the calendar event id from a booking id. Google accepts
// lowercase hex, so a dashless uuid is valid and stable across retries.
func EventID(bookingID string) string {
	return strings.ReplaceAll(strings.ToLower(bookingID), "-", "")
}

// CreateEvent inserts the one-hour event for a booking in the host's primary
// calendar. An event that already exists counts as success.
func (c *Client) CreateEvent(ctx context.Context, bookingID string) error {
	b, err := c.store.BookingByID(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}

	acct, err := c.store.AccountForUser(ctx, b.UserID, auth.ProviderGoogle)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %s", ErrNoAccount, b.UserID)
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	ts := c.tokenSource(ctx, acct)
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("calendar client: %w", err)
	}

	_, err = svc.Events.Insert("primary", c.event(b)).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		c.log.Info("calendar event already exists", zap.String("booking_id", b.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	c.log.Info("calendar event created", zap.String("booking_id", b.ID), zap.String("user_id", b.UserID))
	return nil
}

func (c *Client) event(b *model.Booking) *gcal.Event {
	start := b.Date.In(c.loc)
	end := start.Add(time.Hour)
	return &gcal.Event{
		Id:          EventID(b.ID),
		Summary:     "Call: " + b.Name,
		Description: b.Observations,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.loc.String()},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: c.loc.String()},
		Attendees: []*gcal.EventAttendee{
			{Email: b.Email, DisplayName: b.Name},
		},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             b.ID,
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
}

func (c *Client) tokenSource(ctx context.Context, acct *model.Account) oauth2.TokenSource {
	tok := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		TokenType:    acct.TokenType,
	}
	if acct.ExpiresAt != nil {
		tok.Expiry = *acct.ExpiresAt
	}
	return &persistingTokenSource{
		ctx:       ctx,
		base:      c.oauth.TokenSource(ctx, tok),
		last:      tok.AccessToken,
		accountID: acct.ID,
		store:     c.store,
		log:       c.log,
	}
}

// persistingTokenSource writes refreshed tokens back to the account row so
// the next job starts from a valid access token.
type persistingTokenSource struct {
	ctx       context.Context
	base      oauth2.TokenSource
	accountID string
	store     Store
	log       *zap.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken

	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		expiry = &e
	}
	if err := p.store.UpdateAccountTokens(p.ctx, p.accountID, tok.AccessToken, tok.RefreshToken, expiry, auth.GrantedScope(tok)); err != nil {
		p.log.Warn("persist refreshed token failed", zap.String("account_id", p.accountID), zap.Error(err))
	}
	return tok, nil
}
