// Package booking implements the public booking operations: day availability,
// month blocks, weekly rule replacement and the booking commit.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/availability"
	"schedule-booking-api/internal/clock"
	"schedule-booking-api/internal/model"
	"schedule-booking-api/internal/store"
)

type Store interface {
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	IntervalForWeekDay(ctx context.Context, userID string, weekDay int) (*model.WeeklyInterval, error)
	ListIntervals(ctx context.Context, userID string) ([]model.WeeklyInterval, error)
	ReplaceIntervals(ctx context.Context, userID string, intervals []model.WeeklyInterval) error
	BookingTimes(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error)
	BookingExists(ctx context.Context, userID string, date time.Time) (bool, error)
	CreateBooking(ctx context.Context, b *model.Booking, evt model.OutboxEvent) error
}

// BlockCache memoizes month blocks per user generation. Invalidate moves the
// user to a new generation, so Set with a generation read earlier never
// becomes visible. Failures are logged and otherwise ignored.
type BlockCache interface {
	Generation(ctx context.Context, userID string) (int64, error)
	Get(ctx context.Context, userID string, gen int64, year int, month time.Month) (availability.Month, bool, error)
	Set(ctx context.Context, userID string, gen int64, year int, month time.Month, m availability.Month) error
	Invalidate(ctx context.Context, userID string) error
}

type Service struct {
	store    Store
	cache    BlockCache
	clock    clock.Clock
	loc      *time.Location
	validate *validator.Validate
	log      *zap.Logger
}

// NewService wires the service. cache may be nil.
func NewService(st Store, cache BlockCache, clk clock.Clock, loc *time.Location, log *zap.Logger) *Service {
	if cache == nil {
		cache = noCache{}
	}
	return &Service{
		store:    st,
		cache:    cache,
		clock:    clk,
		loc:      loc,
		validate: newValidator(),
		log:      log,
	}
}

func (s *Service) user(ctx context.Context, username string) (*model.User, error) {
	u, err := s.store.UserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	return u, nil
}

// Availability returns the hours of rawDate that the user offers and the ones
// still free. Dates before today yield empty lists.
func (s *Service) Availability(ctx context.Context, username, rawDate string) (availability.Day, error) {
	if strings.TrimSpace(rawDate) == "" {
		return availability.Day{}, apperr.New(apperr.KindInvalidDate, "date not provided")
	}
	u, err := s.user(ctx, username)
	if err != nil {
		return availability.Day{}, err
	}
	date, err := availability.ParseDate(rawDate, s.loc)
	if err != nil {
		return availability.Day{}, apperr.ErrInvalidDate
	}

	now := s.clock.Now()
	start, next := availability.DayRange(date, s.loc)
	if next.Add(-time.Nanosecond).Before(now) {
		return availability.ComputeDay(date, s.loc, nil, nil, now), nil
	}

	rule, err := s.store.IntervalForWeekDay(ctx, u.ID, int(start.Weekday()))
	if errors.Is(err, store.ErrNotFound) {
		rule = nil
	} else if err != nil {
		return availability.Day{}, apperr.Internal(fmt.Errorf("find interval: %w", err))
	}

	var booked []time.Time
	if rule != nil {
		booked, err = s.store.BookingTimes(ctx, u.ID, start, next)
		if err != nil {
			return availability.Day{}, apperr.Internal(fmt.Errorf("list bookings: %w", err))
		}
	}
	return availability.ComputeDay(date, s.loc, rule, booked, now), nil
}

// ParseYearMonth reads the query values of a month lookup.
func ParseYearMonth(rawYear, rawMonth string) (int, int, error) {
	if strings.TrimSpace(rawYear) == "" || strings.TrimSpace(rawMonth) == "" {
		return 0, 0, apperr.New(apperr.KindInvalidDate, "year or month not specified")
	}
	year, err := strconv.Atoi(strings.TrimSpace(rawYear))
	if err != nil {
		return 0, 0, apperr.ErrInvalidDate
	}
	month, err := strconv.Atoi(strings.TrimSpace(rawMonth))
	if err != nil {
		return 0, 0, apperr.ErrInvalidDate
	}
	if !validYearMonth(year, month) {
		return 0, 0, apperr.ErrInvalidDate
	}
	return year, month, nil
}

func validYearMonth(year, month int) bool {
	return month >= 1 && month <= 12 && year >= 1 && year <= 9999
}

// BlockedDates reports the weekdays without rules and the fully booked dates
// of a month.
func (s *Service) BlockedDates(ctx context.Context, username string, year, month int) (availability.Month, error) {
	if !validYearMonth(year, month) {
		return availability.Month{}, apperr.ErrInvalidDate
	}
	u, err := s.user(ctx, username)
	if err != nil {
		return availability.Month{}, err
	}
	mo := time.Month(month)

	// read the generation before the store so a concurrent commit retires our write
	gen, err := s.cache.Generation(ctx, u.ID)
	cached := err == nil
	if err != nil {
		s.log.Warn("month blocks cache read failed", zap.String("user_id", u.ID), zap.Error(err))
	} else if m, ok, err := s.cache.Get(ctx, u.ID, gen, year, mo); err != nil {
		s.log.Warn("month blocks cache read failed", zap.String("user_id", u.ID), zap.Error(err))
	} else if ok {
		return m, nil
	}

	rules, err := s.store.ListIntervals(ctx, u.ID)
	if err != nil {
		return availability.Month{}, apperr.Internal(fmt.Errorf("list intervals: %w", err))
	}
	first, next := availability.MonthRange(year, mo, s.loc)
	booked, err := s.store.BookingTimes(ctx, u.ID, first, next)
	if err != nil {
		return availability.Month{}, apperr.Internal(fmt.Errorf("list bookings: %w", err))
	}

	m := availability.ComputeMonth(rules, booked, s.loc)
	if cached {
		if err := s.cache.Set(ctx, u.ID, gen, year, mo, m); err != nil {
			s.log.Warn("month blocks cache write failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return m, nil
}

// IntervalInput is one weekday of a weekly schedule as entered by its owner.
type IntervalInput struct {
	WeekDay   int    `json:"weekDay" validate:"min=0,max=6"`
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

type replaceRequest struct {
	Intervals []IntervalInput `validate:"len=7,dive"`
}

// ReplaceTimeIntervals validates a full week and stores its enabled days,
// replacing whatever the user had before.
func (s *Service) ReplaceTimeIntervals(ctx context.Context, userID string, in []IntervalInput) error {
	if userID == "" {
		return apperr.ErrUnauthenticated
	}
	if err := s.validate.Struct(replaceRequest{Intervals: in}); err != nil {
		return apperr.Validation(validationMessage(err))
	}

	seen := make(map[int]bool, len(in))
	var rules []model.WeeklyInterval
	for _, iv := range in {
		if seen[iv.WeekDay] {
			return apperr.Validation(fmt.Sprintf("week day %d listed twice", iv.WeekDay))
		}
		seen[iv.WeekDay] = true
		if !iv.Enabled {
			continue
		}
		start, _ := ParseClock(iv.StartTime)
		end, _ := ParseClock(iv.EndTime)
		if end-60 < start {
			return apperr.Validation("end time must be at least one hour after start time")
		}
		rules = append(rules, model.WeeklyInterval{UserID: userID, WeekDay: iv.WeekDay, StartMinutes: start, EndMinutes: end})
	}
	if len(rules) == 0 {
		return apperr.Validation("at least one week day must be enabled")
	}

	if err := s.store.ReplaceIntervals(ctx, userID, rules); err != nil {
		return apperr.Internal(fmt.Errorf("replace intervals: %w", err))
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("month blocks invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// BookingInput is what a visitor submits to book an hour.
type BookingInput struct {
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	Observations string    `json:"observations"`
	Date         time.Time `json:"date"`
}

// CreateBooking commits a booking on the hour containing in.Date. The pre-check
// gives a clean Conflict in the common case; the unique (user, date)
// constraint decides races.
func (s *Service) CreateBooking(ctx context.Context, username string, in BookingInput) (*model.Booking, error) {
	u, err := s.user(ctx, username)
	if err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation(validationMessage(err))
	}
	if in.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}

	at := availability.StartOfHour(in.Date, s.loc)
	if at.Before(s.clock.Now()) {
		return nil, apperr.ErrPastDate
	}

	// a taken hour is a Conflict even if the owner has since changed the rules
	exists, err := s.store.BookingExists(ctx, u.ID, at)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("check booking: %w", err))
	}
	if exists {
		return nil, apperr.ErrConflict
	}

	rule, err := s.store.IntervalForWeekDay(ctx, u.ID, int(at.Weekday()))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("find interval: %w", err))
	}
	if rule == nil || !withinWindow(*rule, at.Hour()) {
		return nil, apperr.Validation("requested time is outside the user's availability")
	}

	b := &model.Booking{
		ID:           uuid.New().String(),
		UserID:       u.ID,
		Name:         in.Name,
		Email:        in.Email,
		Observations: strings.TrimSpace(in.Observations),
		Date:         at,
	}
	evt, err := createdEvent(b)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := s.store.CreateBooking(ctx, b, evt); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.ErrConflict
		}
		return nil, apperr.Internal(fmt.Errorf("create booking: %w", err))
	}

	if err := s.cache.Invalidate(ctx, u.ID); err != nil {
		s.log.Warn("month blocks invalidation failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("user_id", u.ID),
		zap.Time("date", at))
	return b, nil
}

func withinWindow(rule model.WeeklyInterval, hour int) bool {
	for _, h := range availability.Slots(rule) {
		if h == hour {
			return true
		}
	}
	return false
}

const (
	AggregateBooking    = "booking"
	EventBookingCreated = "booking.created"
)

// Created is the payload of a booking.created event.
type Created struct {
	BookingID    string    `json:"bookingId"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Observations string    `json:"observations,omitempty"`
	Date         time.Time `json:"date"`
}

func createdEvent(b *model.Booking) (model.OutboxEvent, error) {
	payload, err := json.Marshal(Created{
		BookingID:    b.ID,
		UserID:       b.UserID,
		Name:         b.Name,
		Email:        b.Email,
		Observations: b.Observations,
		Date:         b.Date.UTC(),
	})
	if err != nil {
		return model.OutboxEvent{}, fmt.Errorf("encode event: %w", err)
	}
	return model.OutboxEvent{
		AggregateType: AggregateBooking,
		AggregateID:   b.ID,
		EventType:     EventBookingCreated,
		Payload:       payload,
	}, nil
}

type noCache struct{}

func (noCache) Generation(context.Context, string) (int64, error) { return 0, nil }
func (noCache) Get(context.Context, string, int64, int, time.Month) (availability.Month, bool, error) {
	return availability.Month{}, false, nil
}
func (noCache) Set(context.Context, string, int64, int, time.Month, availability.Month) error {
	return nil
}
func (noCache) Invalidate(context.Context, string) error { return nil }
