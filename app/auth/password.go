package auth

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	authsvc "bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/internal/notify"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/validators"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type forgotBody struct {
	Email string `json:"email"`
}

// ForgotPassword issues a reset token and sends the link. Users with a
// verified phone get it by SMS, falling back to email. The answer is the same
// whether or not the account exists.
func ForgotPassword(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()

	var data forgotBody
	if !common.Bind(c, &data) {
		return
	}

	data.Email = common.NormalizeEmail(data.Email)

	if err := validators.EmailValidator(data.Email); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	allowed, wait, err := d.Attempts.Allow(ctx, "forgot:"+data.Email)
	if err != nil {
		zap.L().Warn("Failed to check reset attempts", zap.Error(err), zap.String("requestID", requestID))
		allowed = true
	}

	if !allowed {
		tooManyAttempts(c, wait)
		return
	}

	generic := gin.H{"message": "If an account with that email exists, a reset link has been sent"}

	var user model.User
	if err := d.DB.WithContext(ctx).Where("email = ?", data.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, generic)
			return
		}

		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	if !user.Active {
		c.JSON(http.StatusOK, generic)
		return
	}

	tok, err := d.Auth.Resets.Issue(ctx, user.ID)
	if err != nil {
		common.ServerError(c, "Failed to issue reset token", err)
		return
	}

	link := d.Config.Host.BaseURL() + "/reset-password?token=" + url.QueryEscape(tok.Token)
	n := notify.ResetLink(d.Config.App.Name, link, d.Config.Security.ResetTokenTTL).To(model.ChannelEmail, user.Email)

	if user.Phone != nil && user.PhoneVerified {
		n.Channel = model.ChannelSMS
		n.To = *user.Phone
		n.FallbackEmail = user.Email
	}

	if err := d.Notifier.Notify(ctx, n); err != nil {
		zap.L().Error("Failed to send reset link", zap.Error(err), zap.String("requestID", requestID))
	}

	metrics.AuthEvent("reset_requested")

	c.JSON(http.StatusOK, generic)
}

// ValidateResetToken lets the reset form check its token before asking for a
// new password
func ValidateResetToken(c *gin.Context, d *internal.Deps) {
	token := c.Query("token")
	if token == "" {
		common.Fail(c, http.StatusBadRequest, "No token provided")
		return
	}

	tok, err := d.Auth.Resets.Validate(c.Request.Context(), token)
	if err != nil {
		resetTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"expiresAt": tok.ExpiresAt,
	})
}

type resetBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func ResetPassword(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()

	var data resetBody
	if !common.Bind(c, &data) {
		return
	}

	if data.Token == "" {
		common.Fail(c, http.StatusBadRequest, "No token provided")
		return
	}

	if err := validators.PasswordValidator(data.Password); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	// Cheap check first so an invalid token doesn't cost an argon2 hash
	if _, err := d.Auth.Resets.Validate(ctx, data.Token); err != nil {
		resetTokenError(c, err)
		return
	}

	hash, err := d.Argon.GenerateFromPassword(data.Password)
	if err != nil {
		common.ServerError(c, "Failed to hash password", err)
		return
	}

	userID, err := d.Auth.Resets.Consume(ctx, data.Token, hash)
	if err != nil {
		resetTokenError(c, err)
		return
	}

	metrics.AuthEvent("password_reset")

	var user model.User
	if err := d.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err == nil {
		n := notify.PasswordChanged(d.Config.App.Name, time.Now()).To(model.ChannelEmail, user.Email)
		if err := d.Notifier.Notify(ctx, n); err != nil {
			zap.L().Warn("Failed to send password changed notice", zap.Error(err), zap.String("requestID", requestID))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password updated, please log in with your new password",
	})

	zap.L().Info("Password reset", zap.String("userID", userID), zap.String("requestID", requestID))
}

func resetTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authsvc.ErrTokenNotFound):
		common.Fail(c, http.StatusNotFound, "Invalid reset link")
	case errors.Is(err, authsvc.ErrTokenUsed):
		common.Fail(c, http.StatusGone, "This reset link was already used")
	case errors.Is(err, authsvc.ErrTokenExpired):
		common.Fail(c, http.StatusGone, "This reset link has expired, please request a new one")
	default:
		common.ServerError(c, "Failed to process reset token", err)
	}
}
