package common

import (
	"bitwise74/cardio-api/internal"
	authsvc "bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/internal/notify"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SendCode issues a verification code for u and delivers it to target over
// channel. Failures are logged, the caller decides whether they matter.
func SendCode(c *gin.Context, d *internal.Deps, u *model.User, channel, target, purpose string) error {
	requestID := RequestID(c)

	code, err := d.Auth.Codes.Issue(c.Request.Context(), authsvc.CodeRequest{
		UserID:  &u.ID,
		Target:  target,
		Channel: channel,
		Purpose: purpose,
	})
	if err != nil {
		if !errors.Is(err, authsvc.ErrResendCooldown) {
			zap.L().Error("Failed to issue verification code", zap.Error(err), zap.String("purpose", purpose), zap.String("requestID", requestID))
		}
		return err
	}

	content := notify.VerificationCode(d.Config.App.Name, code, d.Config.Security.VerificationCodeTTL)
	if err := d.Notifier.Notify(c.Request.Context(), content.To(channel, target)); err != nil {
		zap.L().Error("Failed to send verification code", zap.Error(err), zap.String("channel", channel), zap.String("requestID", requestID))
		return err
	}

	return nil
}

// CodeError answers the client for a failed code verification
func CodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authsvc.ErrCodeNotFound):
		Fail(c, http.StatusBadRequest, "No pending verification code, please request a new one")
	case errors.Is(err, authsvc.ErrCodeExpired):
		Fail(c, http.StatusGone, "Verification code expired, please request a new one")
	case errors.Is(err, authsvc.ErrTooManyAttempts):
		Fail(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, authsvc.ErrCodeInvalid):
		Fail(c, http.StatusBadRequest, "Incorrect verification code")
	default:
		ServerError(c, "Failed to verify code", err)
	}
}

// Cooldown answers 429 with the seconds left until a new code may be sent.
// It returns false when err isn't a cooldown.
func Cooldown(c *gin.Context, err error) bool {
	var cd *authsvc.CooldownError
	if !errors.As(err, &cd) {
		return false
	}

	c.Header("Retry-After", strconv.Itoa(cd.RetrySeconds()))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":      authsvc.ErrResendCooldown.Error(),
		"retryAfter": cd.RetrySeconds(),
		"requestID":  RequestID(c),
	})

	return true
}
