package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schedule-booking-api/internal/apperr"
	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/middleware"
)

func (a *api) availability(c *gin.Context) {
	day, err := a.Bookings.Availability(c.Request.Context(), c.Param("username"), c.Query("date"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (a *api) blockedDates(c *gin.Context) {
	year, month, err := booking.ParseYearMonth(c.Query("year"), c.Query("month"))
	if err != nil {
		a.fail(c, err)
		return
	}
	m, err := a.Bookings.BlockedDates(c.Request.Context(), c.Param("username"), year, month)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type intervalsBody struct {
	Intervals []booking.IntervalInput `json:"intervals"`
}

func (a *api) replaceTimeIntervals(c *gin.Context) {
	var body intervalsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		a.badBody(c)
		return
	}
	ctx := c.Request.Context()
	if err := a.Bookings.ReplaceTimeIntervals(ctx, middleware.UserID(ctx), body.Intervals); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type scheduleBody struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Observations string `json:"observations"`
	Date         string `json:"date"`
}

func (a *api) schedule(c *gin.Context) {
	var body scheduleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		a.badBody(c)
		return
	}
	in := booking.BookingInput{
		Name:         body.Name,
		Email:        body.Email,
		Observations: body.Observations,
	}
	if raw := strings.TrimSpace(body.Date); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.fail(c, apperr.Validation("date must be an RFC 3339 timestamp"))
			return
		}
		in.Date = at
	}

	b, err := a.Bookings.CreateBooking(c.Request.Context(), c.Param("username"), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": b.ID})
}
