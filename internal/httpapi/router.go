// Package httpapi serves the REST API used by the booking web app.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schedule-booking-api/internal/account"
	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/availability"
	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/middleware"
	"schedule-booking-api/internal/model"
)

type Bookings interface {
	Availability(ctx context.Context, username, rawDate string) (availability.Day, error)
	BlockedDates(ctx context.Context, username string, year, month int) (availability.Month, error)
	ReplaceTimeIntervals(ctx context.Context, userID string, in []booking.IntervalInput) error
	CreateBooking(ctx context.Context, username string, in booking.BookingInput) (*model.Booking, error)
}

type Accounts interface {
	Register(ctx context.Context, in account.RegisterInput) (*model.User, error)
	CompleteGoogleSignIn(ctx context.Context, code, pendingUserID string) (*account.Session, error)
	Refresh(ctx context.Context, raw string) (*account.Session, error)
	Logout(ctx context.Context, raw string) error
	UpdateProfile(ctx context.Context, userID, bio string) error
	PublicProfile(ctx context.Context, username string) (*model.User, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

// OAuth starts the provider consent flow.
type OAuth interface {
	AuthCodeURL(state string) string
}

// Check is one dependency probed by /readyz.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Deps struct {
	Bookings Bookings
	Accounts Accounts
	OAuth    OAuth
	Secret   string
	// AppURL is the web app origin: CORS origin and OAuth redirect target.
	AppURL       string
	SecureCookie bool
	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string
	Limiter        *middleware.RateLimiter
	GRPCWeb        http.Handler
	Checks         []Check
	Log            *zap.Logger
}

type api struct {
	Deps
}

func NewRouter(d Deps) *gin.Engine {
	a := &api{Deps: d}
	a.AppURL = strings.TrimRight(a.AppURL, "/")

	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Log.Warn("ignoring trusted proxies", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(d.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{a.AppURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Grpc-Web", "X-User-Agent", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Grpc-Status", "Grpc-Message", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", a.healthz)
	r.GET("/readyz", a.readyz)

	requireUser := middleware.RequireUser(d.Secret)
	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = middleware.GinRateLimit(d.Limiter)
	}

	users := r.Group("/api/users")
	{
		users.POST("", limit, a.claimUsername)
		users.PUT("/time-intervals", requireUser, a.replaceTimeIntervals)
		users.PATCH("/profile", requireUser, a.updateProfile)
		users.GET("/:username", a.publicProfile)
		users.GET("/:username/availability", a.availability)
		users.GET("/:username/blocked-dates", a.blockedDates)
		users.POST("/:username/schedule", limit, a.schedule)
	}

	authGroup := r.Group("/api/auth")
	{
		authGroup.GET("/google", a.googleStart)
		authGroup.GET("/google/callback", a.googleCallback)
		authGroup.POST("/refresh", a.refresh)
		authGroup.POST("/logout", a.logout)
		authGroup.GET("/session", requireUser, a.session)
	}

	if d.GRPCWeb != nil {
		r.POST("/booking.v1.BookingService/:method", gin.WrapH(d.GRPCWeb))
	}
	return r
}

// fail writes the client-safe message of err. Internal causes are logged.
func (a *api) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		a.Log.Error("request failed",
			zap.String("request_id", middleware.RequestIDFromContext(c.Request.Context())),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"message": apperr.Message(err)})
}

func (a *api) badBody(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
}
