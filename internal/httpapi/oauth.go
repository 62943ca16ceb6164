package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schedule-booking-api/internal/account"
	"schedule-booking-api/internal/auth"
	"schedule-booking-api/internal/middleware"
)

const (
	stateCookie   = "oauth_state"
	refreshCookie = "refresh_token"
	refreshPath   = "/api/auth"
)

func (a *api) googleStart(c *gin.Context) {
	state, err := auth.RandomToken(16)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.setCookie(c, stateCookie, state, int((10 * time.Minute).Seconds()), refreshPath)
	c.Redirect(http.StatusFound, a.OAuth.AuthCodeURL(state))
}

func (a *api) googleCallback(c *gin.Context) {
	want, _ := c.Cookie(stateCookie)
	got := c.Query("state")
	a.clearCookie(c, stateCookie, refreshPath)
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid oauth state"})
		return
	}
	// consent screen closed or denied
	if c.Query("error") != "" || c.Query("code") == "" {
		c.Redirect(http.StatusFound, a.AppURL+"/register/connect-calendar?error=permissions")
		return
	}

	pending, _ := c.Cookie(pendingCookie)
	sess, err := a.Accounts.CompleteGoogleSignIn(c.Request.Context(), c.Query("code"), pending)
	if errors.Is(err, account.ErrMissingCalendarScope) {
		c.Redirect(http.StatusFound, a.AppURL+"/register/connect-calendar?error=permissions")
		return
	}
	if err != nil {
		a.fail(c, err)
		return
	}

	a.clearCookie(c, pendingCookie, "/")
	a.setSession(c, sess)
	a.Log.Info("google sign-in", zap.String("user_id", sess.UserID))
	c.Redirect(http.StatusFound, a.AppURL+"/register/time-intervals")
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *api) refresh(c *gin.Context) {
	raw := a.refreshToken(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "no refresh token"})
		return
	}
	sess, err := a.Accounts.Refresh(c.Request.Context(), raw)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.setSession(c, sess)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
		"expiresIn":    int(auth.AccessTTL.Seconds()),
	})
}

func (a *api) logout(c *gin.Context) {
	if err := a.Accounts.Logout(c.Request.Context(), a.refreshToken(c)); err != nil {
		a.fail(c, err)
		return
	}
	a.clearCookie(c, middleware.AccessCookie, "/")
	a.clearCookie(c, refreshCookie, refreshPath)
	c.Status(http.StatusNoContent)
}

// refreshToken reads the cookie first, then an optional JSON body.
func (a *api) refreshToken(c *gin.Context) string {
	if raw, err := c.Cookie(refreshCookie); err == nil && raw != "" {
		return raw
	}
	var body refreshBody
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&body)
	}
	return body.RefreshToken
}

func (a *api) setSession(c *gin.Context, sess *account.Session) {
	a.setCookie(c, middleware.AccessCookie, sess.AccessToken, int(auth.AccessTTL.Seconds()), "/")
	maxAge := int(time.Until(sess.RefreshExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(auth.RefreshTTL.Seconds())
	}
	a.setCookie(c, refreshCookie, sess.RefreshToken, maxAge, refreshPath)
}
