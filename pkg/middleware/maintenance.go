package middleware

import (
	"bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/internal/settings"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewMaintenanceMiddleware answers 503 to everyone but admins while the
// maintenance_mode setting is on. Routes in exempt (gin route templates)
// always pass so admins can still log in.
func NewMaintenanceMiddleware(st *settings.Store, sessions *auth.Sessions, exempt ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if slices.Contains(exempt, c.FullPath()) {
			c.Next()
			return
		}

		on, err := st.Bool(c.Request.Context(), model.SettingMaintenanceMode, false)
		if err != nil {
			// Don't lock everyone out because the settings table hiccuped
			zap.L().Warn("Failed to read maintenance mode", zap.Error(err))
		}

		if !on {
			c.Next()
			return
		}

		if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
			if p, err := sessions.Lookup(c.Request.Context(), token); err == nil && p.User.IsAdmin {
				c.Next()
				return
			}
		}

		requestID, _ := c.Get("requestID")

		c.Header("Retry-After", "300")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":     "The service is undergoing maintenance, please try again later",
			"requestID": requestID,
		})
	}
}
