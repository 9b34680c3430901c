package middleware

import (
	"bitwise74/cardio-api/internal/auth"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	SessionCookie = "session"
	// AdminCookie only tells the frontend which navigation to render. The
	// server never reads it.
	AdminCookie = "is_admin"

	principalKey = "principal"
)

// SetSessionCookies writes the session cookie and the admin UI hint
func SetSessionCookies(c *gin.Context, token string, isAdmin bool, maxAge int, secure bool) {
	admin := "false"
	if isAdmin {
		admin = "true"
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", secure, true)
	c.SetCookie(AdminCookie, admin, maxAge, "/", "", secure, false)
}

func ClearSessionCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", secure, true)
	c.SetCookie(AdminCookie, "", -1, "/", "", secure, false)
}

// NewSessionMiddleware resolves the session cookie and stores the principal
// and userID on the context. Requests without a valid session are rejected.
func NewSessionMiddleware(sessions *auth.Sessions, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Not logged in",
				"requestID": requestID,
			})
			return
		}

		p, err := sessions.Lookup(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrSessionExpired):
				ClearSessionCookies(c, secure)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Session expired. Please log in again",
					"requestID": requestID,
				})
			case errors.Is(err, auth.ErrUserInactive):
				ClearSessionCookies(c, secure)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":     "Your account has been deactivated",
					"requestID": requestID,
				})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":     "Internal server error",
					"requestID": requestID,
				})

				zap.L().Error("Failed to look up session", zap.Error(err), zap.String("requestID", requestID))
			}
			return
		}

		c.Set(principalKey, p)
		c.Set("userID", p.User.ID)
		c.Next()
	}
}

// CurrentPrincipal returns what NewSessionMiddleware stored, nil on public
// routes
func CurrentPrincipal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}

	p, _ := v.(*auth.Principal)
	return p
}

// RequireAdmin must run after NewSessionMiddleware
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		p := CurrentPrincipal(c)
		if p == nil || !p.User.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Admin access required",
				"requestID": requestID,
			})
			return
		}

		c.Next()
	}
}
