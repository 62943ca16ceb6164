package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/auth"
	"schedule-booking-api/internal/availability"
	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/clock"
	"schedule-booking-api/internal/handler"
	"schedule-booking-api/internal/middleware"
	"schedule-booking-api/internal/model"
	"schedule-booking-api/internal/rpc"
	"schedule-booking-api/internal/store"
)

const secret = "handler-test-secret"

type fakeBookings struct {
	mu        sync.Mutex
	err       error
	gotUser   string
	gotInput  booking.BookingInput
	intervals []booking.IntervalInput
}

func (f *fakeBookings) Availability(_ context.Context, username, rawDate string) (availability.Day, error) {
	if f.err != nil {
		return availability.Day{}, f.err
	}
	return availability.Day{PossibleTimes: []int{8, 9, 10, 11}, AvailableTimes: []int{8, 9, 11}}, nil
}

func (f *fakeBookings) BlockedDates(_ context.Context, username string, year, month int) (availability.Month, error) {
	if f.err != nil {
		return availability.Month{}, f.err
	}
	return availability.Month{BlockedWeekDays: []int{0, 6}, BlockedDates: []string{fmt.Sprintf("%04d-%02d-14", year, month)}}, nil
}

func (f *fakeBookings) ReplaceTimeIntervals(_ context.Context, userID string, in []booking.IntervalInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotUser = userID
	f.intervals = in
	return f.err
}

func (f *fakeBookings) CreateBooking(_ context.Context, username string, in booking.BookingInput) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Booking{ID: "b-1"}, nil
}

type fakeProfiles struct {
	gotUser, gotBio string
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, userID, bio string) error {
	f.gotUser, f.gotBio = userID, bio
	return nil
}

// serve runs h behind the production interceptor chain on an in-memory listener.
func serve(t *testing.T, h rpc.BookingServiceServer) *rpc.BookingServiceClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.UnaryRequestID(),
		middleware.RateLimit(middleware.NewRateLimiter(ctx, 100, 100)),
		middleware.Auth(secret),
	))
	rpc.RegisterBookingServiceServer(srv, h)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return rpc.NewBookingServiceClient(conn)
}

func authed(t *testing.T, uid string) context.Context {
	t.Helper()
	tok, err := auth.MakeToken(uid, secret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func TestGetAvailability(t *testing.T) {
	c := serve(t, handler.New(&fakeBookings{}, &fakeProfiles{}, zap.NewNop()))

	resp, err := c.GetAvailability(context.Background(), &rpc.GetAvailabilityRequest{Username: "jane", Date: "2026-01-12"})
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if fmt.Sprint(resp.PossibleTimes) != "[8 9 10 11]" || fmt.Sprint(resp.AvailableTimes) != "[8 9 11]" {
		t.Errorf("got %v / %v", resp.PossibleTimes, resp.AvailableTimes)
	}
}

func TestGetBlockedDates(t *testing.T) {
	c := serve(t, handler.New(&fakeBookings{}, &fakeProfiles{}, zap.NewNop()))

	resp, err := c.GetBlockedDates(context.Background(), &rpc.GetBlockedDatesRequest{Username: "jane", Year: 2026, Month: 1})
	if err != nil {
		t.Fatalf("get blocked dates: %v", err)
	}
	if fmt.Sprint(resp.BlockedWeekDays) != "[0 6]" || len(resp.BlockedDates) != 1 || resp.BlockedDates[0] != "2026-01-14" {
		t.Errorf("got %+v", resp)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{apperr.ErrUserNotFound, codes.NotFound, ""},
		{apperr.ErrInvalidDate, codes.InvalidArgument, ""},
		{apperr.ErrPastDate, codes.FailedPrecondition, ""},
		{apperr.ErrConflict, codes.AlreadyExists, ""},
		{apperr.Validation("email is invalid"), codes.InvalidArgument, "email is invalid"},
		{apperr.Internal(errors.New("pg: connection refused")), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			c := serve(t, handler.New(&fakeBookings{err: tt.err}, &fakeProfiles{}, zap.NewNop()))
			_, err := c.CreateBooking(context.Background(), &rpc.CreateBookingRequest{
				Username: "jane", Name: "Ana", Email: "ana@example.com",
				Date: timestamppb.New(time.Now().Add(24 * time.Hour)),
			})
			s, _ := status.FromError(err)
			if s.Code() != tt.code {
				t.Fatalf("code = %v, want %v", s.Code(), tt.code)
			}
			if tt.msg != "" && s.Message() != tt.msg {
				t.Errorf("message = %q, want %q", s.Message(), tt.msg)
			}
		})
	}
}

func TestCreateBookingPassesInput(t *testing.T) {
	fb := &fakeBookings{}
	c := serve(t, handler.New(fb, &fakeProfiles{}, zap.NewNop()))
	at := time.Date(2026, 1, 14, 10, 30, 0, 0, time.UTC)

	resp, err := c.CreateBooking(context.Background(), &rpc.CreateBookingRequest{
		Username: "jane", Name: "Ana", Email: "ana@example.com", Observations: "hi",
		Date: timestamppb.New(at),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if resp.ID != "b-1" {
		t.Errorf("id = %q", resp.ID)
	}
	if !fb.gotInput.Date.Equal(at) || fb.gotInput.Observations != "hi" {
		t.Errorf("input = %+v", fb.gotInput)
	}
}

func TestReplaceTimeIntervalsRequiresAuth(t *testing.T) {
	fb := &fakeBookings{}
	c := serve(t, handler.New(fb, &fakeProfiles{}, zap.NewNop()))
	req := &rpc.ReplaceTimeIntervalsRequest{Intervals: []*rpc.TimeInterval{
		{WeekDay: 1, Enabled: true, StartTime: "08:00", EndTime: "12:00"},
	}}

	_, err := c.ReplaceTimeIntervals(context.Background(), req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	if _, err := c.ReplaceTimeIntervals(authed(t, "u-1"), req); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if fb.gotUser != "u-1" || len(fb.intervals) != 1 || fb.intervals[0].StartTime != "08:00" {
		t.Errorf("user %q intervals %+v", fb.gotUser, fb.intervals)
	}
}

func TestUpdateProfile(t *testing.T) {
	fp := &fakeProfiles{}
	c := serve(t, handler.New(&fakeBookings{}, fp, zap.NewNop()))

	if _, err := c.UpdateProfile(context.Background(), &rpc.UpdateProfileRequest{Bio: "x"}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	if _, err := c.UpdateProfile(authed(t, "u-9"), &rpc.UpdateProfileRequest{Bio: "Hello"}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if fp.gotUser != "u-9" || fp.gotBio != "Hello" {
		t.Errorf("got %q %q", fp.gotUser, fp.gotBio)
	}
}

// ----- database backed -----

type plainSealer struct{}

func (plainSealer) Seal(s string) (string, error) { return s, nil }
func (plainSealer) Open(s string) (string, error) { return s, nil }

func setupDB(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(pool, plainSealer{})
}

func TestConcurrentCreateBookingOverGRPC(t *testing.T) {
	st := setupDB(t)
	ctx := context.Background()

	u := &model.User{
		ID:       uuid.New().String(),
		Username: "race-" + strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return 'a' + (r - '0')
			}
			return r
		}, strings.ReplaceAll(uuid.New().String()[:8], "-", "")),
		Name: "Race Host",
	}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	var week []model.WeeklyInterval
	for d := 0; d < 7; d++ {
		week = append(week, model.WeeklyInterval{UserID: u.ID, WeekDay: d, StartMinutes: 0, EndMinutes: 24 * 60})
	}
	if err := st.ReplaceIntervals(ctx, u.ID, week); err != nil {
		t.Fatalf("intervals: %v", err)
	}

	svc := booking.NewService(st, nil, clock.System(), time.UTC, zap.NewNop())
	c := serve(t, handler.New(svc, &fakeProfiles{}, zap.NewNop()))
	at := time.Now().UTC().Truncate(time.Hour).AddDate(0, 0, 3)

	const n = 8
	var wg sync.WaitGroup
	results := make([]codes.Code, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.CreateBooking(ctx, &rpc.CreateBookingRequest{
				Username: u.Username,
				Name:     fmt.Sprintf("Visitor %d", i),
				Email:    fmt.Sprintf("v%d@example.com", i),
				Date:     timestamppb.New(at),
			})
			results[i] = status.Code(err)
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, code := range results {
		switch code {
		case codes.OK:
			ok++
		case codes.AlreadyExists:
			conflicts++
		default:
			t.Errorf("unexpected code %v", code)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, n-1)
	}

	resp, err := c.GetAvailability(ctx, &rpc.GetAvailabilityRequest{Username: u.Username, Date: at.Format("2006-01-02")})
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	for _, h := range resp.AvailableTimes {
		if int(h) == at.Hour() {
			t.Errorf("booked hour %d still available", h)
		}
	}
}
