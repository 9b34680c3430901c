package middleware

import (
	"bitwise74/cardio-api/config"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type response struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

var turnstileClient = &http.Client{Timeout: 10 * time.Second}

// NewTurnstileMiddleware checks the Cloudflare Turnstile token sent in the
// TurnstileToken header. It does nothing when turnstile is disabled.
func NewTurnstileMiddleware(cfg config.TurnstileConfig) gin.HandlerFunc {
	return newTurnstile(cfg, turnstileVerifyURL)
}

func newTurnstile(cfg config.TurnstileConfig, verifyURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		requestID := c.MustGet("requestID").(string)

		token := c.Request.Header.Get("TurnstileToken")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Missing or invalid turnstile token",
				"requestID": requestID,
			})
			return
		}

		resp, err := turnstileClient.PostForm(verifyURL, url.Values{
			"secret":   {cfg.SecretToken},
			"response": {token},
			"remoteip": {c.ClientIP()},
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Failed to verify turnstile token",
				"requestID": requestID,
			})

			zap.L().Error("Turnstile verification request failed", zap.Error(err), zap.String("requestID", requestID))
			return
		}
		defer resp.Body.Close()

		var res response
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || !res.Success {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": requestID,
			})
			return
		}

		c.Next()
	}
}
