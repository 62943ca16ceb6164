package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schedule-booking-api/internal/account"
	"schedule-booking-api/internal/middleware"
	"schedule-booking-api/internal/model"
)

// pendingCookie holds the id of a claimed username until Google is linked.
const (
	pendingCookie = "pending_user_id"
	pendingMaxAge = 7 * 24 * 60 * 60
)

func (a *api) claimUsername(c *gin.Context) {
	var in account.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		a.badBody(c)
		return
	}
	u, err := a.Accounts.Register(c.Request.Context(), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.setCookie(c, pendingCookie, u.ID, pendingMaxAge, "/")
	c.JSON(http.StatusCreated, gin.H{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
	})
}

type profileBody struct {
	Bio string `json:"bio"`
}

func (a *api) updateProfile(c *gin.Context) {
	var body profileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		a.badBody(c)
		return
	}
	ctx := c.Request.Context()
	if err := a.Accounts.UpdateProfile(ctx, middleware.UserID(ctx), body.Bio); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) publicProfile(c *gin.Context) {
	u, err := a.Accounts.PublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      u.Name,
		"bio":       u.Bio,
		"avatarUrl": u.AvatarURL,
	})
}

func (a *api) session(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := a.Accounts.Me(ctx, middleware.UserID(ctx))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionUser(u))
}

func sessionUser(u *model.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"name":      u.Name,
		"email":     u.Email,
		"bio":       u.Bio,
		"avatarUrl": u.AvatarURL,
	}
}

func (a *api) setCookie(c *gin.Context, name, value string, maxAge int, path string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, path, "", a.SecureCookie, true)
}

func (a *api) clearCookie(c *gin.Context, name, path string) {
	a.setCookie(c, name, "", -1, path)
}
