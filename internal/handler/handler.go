// Package handler implements booking.v1.BookingService on top of the booking
// and account services.
package handler

import (
	"context"

	"go.uber.org/zap"

	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/availability"
	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/middleware"
	"schedule-booking-api/internal/model"
	"schedule-booking-api/internal/rpc"
)

type Bookings interface {
	Availability(ctx context.Context, username, rawDate string) (availability.Day, error)
	BlockedDates(ctx context.Context, username string, year, month int) (availability.Month, error)
	ReplaceTimeIntervals(ctx context.Context, userID string, in []booking.IntervalInput) error
	CreateBooking(ctx context.Context, username string, in booking.BookingInput) (*model.Booking, error)
}

type Profiles interface {
	UpdateProfile(ctx context.Context, userID, bio string) error
}

type Handler struct {
	rpc.UnimplementedBookingServiceServer
	bookings Bookings
	profiles Profiles
	log      *zap.Logger
}

func New(b Bookings, p Profiles, log *zap.Logger) *Handler {
	return &Handler{bookings: b, profiles: p, log: log}
}

// fail converts a service error into a gRPC status. Internal causes are
// logged here and hidden from the caller.
func (h *Handler) fail(ctx context.Context, method string, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.log.Error("request failed",
			zap.String("method", method),
			zap.String("request_id", middleware.RequestIDFromContext(ctx)),
			zap.Error(err))
	}
	return apperr.GRPCStatus(err)
}

func (h *Handler) GetAvailability(ctx context.Context, req *rpc.GetAvailabilityRequest) (*rpc.GetAvailabilityResponse, error) {
	day, err := h.bookings.Availability(ctx, req.Username, req.Date)
	if err != nil {
		return nil, h.fail(ctx, "GetAvailability", err)
	}
	return &rpc.GetAvailabilityResponse{
		PossibleTimes:  int32s(day.PossibleTimes),
		AvailableTimes: int32s(day.AvailableTimes),
	}, nil
}

func (h *Handler) GetBlockedDates(ctx context.Context, req *rpc.GetBlockedDatesRequest) (*rpc.GetBlockedDatesResponse, error) {
	m, err := h.bookings.BlockedDates(ctx, req.Username, int(req.Year), int(req.Month))
	if err != nil {
		return nil, h.fail(ctx, "GetBlockedDates", err)
	}
	return &rpc.GetBlockedDatesResponse{
		BlockedWeekDays: int32s(m.BlockedWeekDays),
		BlockedDates:    m.BlockedDates,
	}, nil
}

func (h *Handler) ReplaceTimeIntervals(ctx context.Context, req *rpc.ReplaceTimeIntervalsRequest) (*rpc.ReplaceTimeIntervalsResponse, error) {
	in := make([]booking.IntervalInput, 0, len(req.Intervals))
	for _, iv := range req.Intervals {
		if iv == nil {
			continue
		}
		in = append(in, booking.IntervalInput{
			WeekDay:   int(iv.WeekDay),
			Enabled:   iv.Enabled,
			StartTime: iv.StartTime,
			EndTime:   iv.EndTime,
		})
	}
	if err := h.bookings.ReplaceTimeIntervals(ctx, middleware.UserID(ctx), in); err != nil {
		return nil, h.fail(ctx, "ReplaceTimeIntervals", err)
	}
	return &rpc.ReplaceTimeIntervalsResponse{}, nil
}

func (h *Handler) CreateBooking(ctx context.Context, req *rpc.CreateBookingRequest) (*rpc.CreateBookingResponse, error) {
	in := booking.BookingInput{
		Name:         req.Name,
		Email:        req.Email,
		Observations: req.Observations,
	}
	if req.Date != nil {
		if err := req.Date.CheckValid(); err != nil {
			return nil, apperr.GRPCStatus(apperr.Validation("date is invalid"))
		}
		in.Date = req.Date.AsTime()
	}
	b, err := h.bookings.CreateBooking(ctx, req.Username, in)
	if err != nil {
		return nil, h.fail(ctx, "CreateBooking", err)
	}
	return &rpc.CreateBookingResponse{ID: b.ID}, nil
}

func (h *Handler) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.UpdateProfileResponse, error) {
	if err := h.profiles.UpdateProfile(ctx, middleware.UserID(ctx), req.Bio); err != nil {
		return nil, h.fail(ctx, "UpdateProfile", err)
	}
	return &rpc.UpdateProfileResponse{}, nil
}

func int32s(xs []int) []int32 {
	out := make([]int32, len(xs))
	for i, x := range xs {
		out[i] = int32(x)
	}
	return out
}
