package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schedule-booking-api/internal/account"
	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/auth"
	"schedule-booking-api/internal/availability"
	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/middleware"
	"schedule-booking-api/internal/model"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

type fakeBookings struct {
	gotUser      string
	gotIntervals []booking.IntervalInput
	gotInput     booking.BookingInput
	err          error
}

func (f *fakeBookings) Availability(_ context.Context, username, rawDate string) (availability.Day, error) {
	if username != "jane" {
		return availability.Day{}, apperr.ErrUserNotFound
	}
	if rawDate == "" {
		return availability.Day{}, apperr.Validation("date is required")
	}
	return availability.Day{PossibleTimes: []int{8, 9, 10}, AvailableTimes: []int{9, 10}}, nil
}

func (f *fakeBookings) BlockedDates(_ context.Context, username string, year, month int) (availability.Month, error) {
	return availability.Month{BlockedWeekDays: []int{0, 6}, BlockedDates: []string{"2026-01-12"}}, nil
}

func (f *fakeBookings) ReplaceTimeIntervals(_ context.Context, userID string, in []booking.IntervalInput) error {
	f.gotUser, f.gotIntervals = userID, in
	return f.err
}

func (f *fakeBookings) CreateBooking(_ context.Context, username string, in booking.BookingInput) (*model.Booking, error) {
	f.gotInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Booking{ID: "b-1"}, nil
}

type fakeAccounts struct {
	signInErr  error
	gotPending string
	gotBio     string
	refreshed  string
	loggedOut  string
}

func (f *fakeAccounts) Register(_ context.Context, in account.RegisterInput) (*model.User, error) {
	if in.Username == "taken" {
		return nil, apperr.Validation("username already taken")
	}
	return &model.User{ID: "u-1", Username: in.Username, Name: in.Name}, nil
}

func (f *fakeAccounts) CompleteGoogleSignIn(_ context.Context, code, pending string) (*account.Session, error) {
	f.gotPending = pending
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &account.Session{UserID: "u-1", AccessToken: "at", RefreshToken: "rt", RefreshExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAccounts) Refresh(_ context.Context, raw string) (*account.Session, error) {
	f.refreshed = raw
	if raw != "rt" {
		return nil, apperr.ErrUnauthenticated
	}
	return &account.Session{UserID: "u-1", AccessToken: "at2", RefreshToken: "rt2", RefreshExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAccounts) Logout(_ context.Context, raw string) error {
	f.loggedOut = raw
	return nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, userID, bio string) error {
	f.gotBio = bio
	return nil
}

func (f *fakeAccounts) PublicProfile(_ context.Context, username string) (*model.User, error) {
	if username != "jane" {
		return nil, apperr.ErrUserNotFound
	}
	return &model.User{Name: "Jane", Bio: "hi", AvatarURL: "https://img/jane"}, nil
}

func (f *fakeAccounts) Me(_ context.Context, userID string) (*model.User, error) {
	return &model.User{ID: userID, Username: "jane"}, nil
}

type fakeOAuth struct{}

func (fakeOAuth) AuthCodeURL(state string) string { return "https://accounts.example/auth?state=" + state }

func newTestRouter(b *fakeBookings, a *fakeAccounts, checks ...Check) *gin.Engine {
	return NewRouter(Deps{
		Bookings: b,
		Accounts: a,
		OAuth:    fakeOAuth{},
		Secret:   testSecret,
		AppURL:   "http://app.local/",
		Checks:   checks,
		Log:      zap.NewNop(),
	})
}

func do(r http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func signedIn(t *testing.T) *http.Cookie {
	t.Helper()
	tok, err := auth.MakeToken("u-1", testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: middleware.AccessCookie, Value: tok}
}

func TestAvailability(t *testing.T) {
	r := newTestRouter(&fakeBookings{}, &fakeAccounts{})

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"ok", "/api/users/jane/availability?date=2026-01-12", http.StatusOK},
		{"missing date", "/api/users/jane/availability", http.StatusBadRequest},
		{"unknown user", "/api/users/ghost/availability?date=2026-01-12", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, "")
			if w.Code != tt.code {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tt.code, w.Body)
			}
		})
	}

	w := do(r, http.MethodGet, "/api/users/jane/availability?date=2026-01-12", "")
	m := decode(t, w)
	if got := m["availableTimes"].([]any); len(got) != 2 {
		t.Errorf("availableTimes = %v", got)
	}
}

func TestBlockedDates(t *testing.T) {
	r := newTestRouter(&fakeBookings{}, &fakeAccounts{})

	w := do(r, http.MethodGet, "/api/users/jane/blocked-dates?year=2026&month=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	m := decode(t, w)
	if got := m["blockedDates"].([]any); len(got) != 1 || got[0] != "2026-01-12" {
		t.Errorf("blockedDates = %v", got)
	}

	w = do(r, http.MethodGet, "/api/users/jane/blocked-dates?year=2026&month=13", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad month: code = %d", w.Code)
	}
}

func TestReplaceTimeIntervalsRequiresUser(t *testing.T) {
	b := &fakeBookings{}
	r := newTestRouter(b, &fakeAccounts{})
	body := `{"intervals":[{"weekDay":1,"enabled":true,"startTime":"08:00","endTime":"18:00"}]}`

	w := do(r, http.MethodPut, "/api/users/time-intervals", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: code = %d", w.Code)
	}

	w = do(r, http.MethodPut, "/api/users/time-intervals", body, signedIn(t))
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d (%s)", w.Code, w.Body)
	}
	if b.gotUser != "u-1" || len(b.gotIntervals) != 1 || b.gotIntervals[0].StartTime != "08:00" {
		t.Errorf("got user %q intervals %+v", b.gotUser, b.gotIntervals)
	}
}

func TestSchedule(t *testing.T) {
	b := &fakeBookings{}
	r := newTestRouter(b, &fakeAccounts{})

	w := do(r, http.MethodPost, "/api/users/jane/schedule",
		`{"name":"Bob","email":"bob@example.com","observations":"hi","date":"2026-01-12T10:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d (%s)", w.Code, w.Body)
	}
	if decode(t, w)["id"] != "b-1" {
		t.Errorf("body = %s", w.Body)
	}
	if want := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC); !b.gotInput.Date.Equal(want) || b.gotInput.Email != "bob@example.com" {
		t.Errorf("input = %+v", b.gotInput)
	}

	w = do(r, http.MethodPost, "/api/users/jane/schedule", `{"name":"Bob","date":"tomorrow"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad date: code = %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/users/jane/schedule", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: code = %d", w.Code)
	}

	b.err = apperr.ErrConflict
	w = do(r, http.MethodPost, "/api/users/jane/schedule", `{"name":"Bob","date":"2026-01-12T10:00:00Z"}`)
	if w.Code != http.StatusConflict || decode(t, w)["message"] != apperr.ErrConflict.Msg {
		t.Errorf("conflict: code = %d body = %s", w.Code, w.Body)
	}

	b.err = errors.New("db down")
	w = do(r, http.MethodPost, "/api/users/jane/schedule", `{"name":"Bob","date":"2026-01-12T10:00:00Z"}`)
	if w.Code != http.StatusInternalServerError || decode(t, w)["message"] != "internal error" {
		t.Errorf("internal: code = %d body = %s", w.Code, w.Body)
	}
}

func TestScheduleRateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRouter(Deps{
		Bookings: &fakeBookings{},
		Accounts: &fakeAccounts{},
		OAuth:    fakeOAuth{},
		Secret:   testSecret,
		AppURL:   "http://app.local",
		Limiter:  middleware.NewRateLimiter(ctx, 1, 1),
		Log:      zap.NewNop(),
	})
	body := `{"name":"Bob","date":"2026-01-12T10:00:00Z"}`
	if w := do(r, http.MethodPost, "/api/users/jane/schedule", body); w.Code != http.StatusCreated {
		t.Fatalf("first: code = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/users/jane/schedule", body); w.Code != http.StatusTooManyRequests {
		t.Errorf("second: code = %d", w.Code)
	}
}

func TestClaimUsername(t *testing.T) {
	r := newTestRouter(&fakeBookings{}, &fakeAccounts{})

	w := do(r, http.MethodPost, "/api/users", `{"username":"jane","name":"Jane Doe"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d (%s)", w.Code, w.Body)
	}
	c := cookie(w, pendingCookie)
	if c == nil || c.Value != "u-1" || !c.HttpOnly {
		t.Errorf("pending cookie = %+v", c)
	}

	w = do(r, http.MethodPost, "/api/users", `{"username":"taken","name":"Jane Doe"}`)
	if w.Code != http.StatusBadRequest || decode(t, w)["message"] != "username already taken" {
		t.Errorf("taken: code = %d body = %s", w.Code, w.Body)
	}
}

func TestProfile(t *testing.T) {
	a := &fakeAccounts{}
	r := newTestRouter(&fakeBookings{}, a)

	w := do(r, http.MethodPatch, "/api/users/profile", `{"bio":"hello"}`, signedIn(t))
	if w.Code != http.StatusNoContent || a.gotBio != "hello" {
		t.Errorf("update: code = %d bio = %q", w.Code, a.gotBio)
	}

	w = do(r, http.MethodGet, "/api/users/jane", "")
	m := decode(t, w)
	if w.Code != http.StatusOK || m["avatarUrl"] != "https://img/jane" || m["bio"] != "hi" {
		t.Errorf("public: code = %d body = %s", w.Code, w.Body)
	}

	if w := do(r, http.MethodGet, "/api/users/ghost", ""); w.Code != http.StatusNotFound {
		t.Errorf("ghost: code = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/auth/session", "", signedIn(t))
	if w.Code != http.StatusOK || decode(t, w)["id"] != "u-1" {
		t.Errorf("session: code = %d body = %s", w.Code, w.Body)
	}
}

func TestGoogleFlow(t *testing.T) {
	a := &fakeAccounts{}
	r := newTestRouter(&fakeBookings{}, a)

	w := do(r, http.MethodGet, "/api/auth/google", "")
	if w.Code != http.StatusFound {
		t.Fatalf("start: code = %d", w.Code)
	}
	state := cookie(w, stateCookie)
	if state == nil || state.Value == "" {
		t.Fatal("no state cookie")
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	if loc.Query().Get("state") != state.Value {
		t.Errorf("redirect state %q, cookie %q", loc.Query().Get("state"), state.Value)
	}

	pending := &http.Cookie{Name: pendingCookie, Value: "u-1"}

	w = do(r, http.MethodGet, "/api/auth/google/callback?code=c&state=forged", "", state, pending)
	if w.Code != http.StatusBadRequest {
		t.Errorf("forged state: code = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/auth/google/callback?code=c&state="+state.Value, "", state, pending)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "http://app.local/register/time-intervals" {
		t.Fatalf("callback: code = %d location = %q", w.Code, w.Header().Get("Location"))
	}
	if a.gotPending != "u-1" {
		t.Errorf("pending user = %q", a.gotPending)
	}
	if c := cookie(w, middleware.AccessCookie); c == nil || c.Value != "at" {
		t.Errorf("access cookie = %+v", c)
	}
	if c := cookie(w, refreshCookie); c == nil || c.Value != "rt" || c.Path != refreshPath {
		t.Errorf("refresh cookie = %+v", c)
	}
	if c := cookie(w, pendingCookie); c == nil || c.MaxAge >= 0 {
		t.Errorf("pending cookie not cleared: %+v", c)
	}

	a.signInErr = account.ErrMissingCalendarScope
	w = do(r, http.MethodGet, "/api/auth/google/callback?code=c&state="+state.Value, "", state, pending)
	if got := w.Header().Get("Location"); got != "http://app.local/register/connect-calendar?error=permissions" {
		t.Errorf("missing scope redirect = %q", got)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	a := &fakeAccounts{}
	r := newTestRouter(&fakeBookings{}, a)

	if w := do(r, http.MethodPost, "/api/auth/refresh", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/auth/refresh", "", &http.Cookie{Name: refreshCookie, Value: "rt"})
	if w.Code != http.StatusOK || decode(t, w)["accessToken"] != "at2" {
		t.Fatalf("cookie refresh: code = %d body = %s", w.Code, w.Body)
	}
	if c := cookie(w, refreshCookie); c == nil || c.Value != "rt2" {
		t.Errorf("rotated cookie = %+v", c)
	}

	w = do(r, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"rt"}`)
	if w.Code != http.StatusOK {
		t.Errorf("body refresh: code = %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"stale"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("stale: code = %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/auth/logout", "", &http.Cookie{Name: refreshCookie, Value: "rt2"})
	if w.Code != http.StatusNoContent || a.loggedOut != "rt2" {
		t.Errorf("logout: code = %d token = %q", w.Code, a.loggedOut)
	}
}

func TestReadiness(t *testing.T) {
	ok := Check{Name: "db", Fn: func(context.Context) error { return nil }}
	down := Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}

	if w := do(newTestRouter(&fakeBookings{}, &fakeAccounts{}, ok), http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("ready: code = %d", w.Code)
	}

	w := do(newTestRouter(&fakeBookings{}, &fakeAccounts{}, ok, down), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unready: code = %d", w.Code)
	}
	failed := decode(t, w)["failed"].(map[string]any)
	if _, ok := failed["redis"]; !ok || len(failed) != 1 {
		t.Errorf("failed = %v", failed)
	}

	if w := do(newTestRouter(&fakeBookings{}, &fakeAccounts{}, down), http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz: code = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&fakeBookings{}, &fakeAccounts{})
	req := httptest.NewRequest(http.MethodOptions, "/api/users/jane/schedule", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Errorf("allow origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials not allowed")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	r := newTestRouter(&fakeBookings{}, &fakeAccounts{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(middleware.RequestIDHeader); got != "req-42" {
		t.Errorf("request id = %q", got)
	}
}
