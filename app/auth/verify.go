package auth

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	authsvc "bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/internal/notify"
	"bitwise74/cardio-api/pkg/metrics"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type verifyBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmail confirms the email code sent on registration and logs the user
// in on success
func VerifyEmail(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()

	var data verifyBody
	if !common.Bind(c, &data) {
		return
	}

	data.Email = common.NormalizeEmail(data.Email)

	if data.Email == "" || data.Code == "" {
		common.Fail(c, http.StatusBadRequest, "Email and code are required")
		return
	}

	var user model.User
	if err := d.DB.WithContext(ctx).Where("email = ?", data.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.CodeError(c, authsvc.ErrCodeNotFound)
			return
		}

		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	if user.EmailVerified {
		common.Fail(c, http.StatusConflict, "Email is already verified")
		return
	}

	if _, err := d.Auth.Codes.VerifyFor(ctx, user.ID, user.Email, model.PurposeEmailVerify, data.Code); err != nil {
		common.CodeError(c, err)
		return
	}

	if err := d.DB.WithContext(ctx).Model(&user).Update("email_verified", true).Error; err != nil {
		common.ServerError(c, "Failed to mark email as verified", err)
		return
	}
	user.EmailVerified = true

	metrics.AuthEvent("email_verified")

	if !user.Active {
		common.Fail(c, http.StatusForbidden, "Your account has been deactivated")
		return
	}

	if !startSession(c, d, &user) {
		return
	}

	welcome := notify.Welcome(d.Config.App.Name, user.FullName)
	if err := d.Notifier.Notify(ctx, welcome.To(model.ChannelEmail, user.Email)); err != nil {
		zap.L().Warn("Failed to send welcome email", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"verified": true,
		"user":     user,
	})
}

type resendBody struct {
	Email   string `json:"email"`
	Channel string `json:"channel"`
}

// ResendCode sends a fresh email verification code, or a phone code when
// channel is sms and the user has a pending phone number. The answer never
// tells whether the account exists.
func ResendCode(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()

	var data resendBody
	if !common.Bind(c, &data) {
		return
	}

	data.Email = common.NormalizeEmail(data.Email)
	if data.Channel == "" {
		data.Channel = model.ChannelEmail
	}

	if data.Email == "" {
		common.Fail(c, http.StatusBadRequest, "Email field can't be empty")
		return
	}

	if data.Channel != model.ChannelEmail && data.Channel != model.ChannelSMS {
		common.Fail(c, http.StatusBadRequest, "Channel must be email or sms")
		return
	}

	generic := gin.H{"message": "If the account exists and needs verification, a new code has been sent"}

	var user model.User
	if err := d.DB.WithContext(ctx).Where("email = ?", data.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, generic)
			return
		}

		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	var err error
	switch {
	case data.Channel == model.ChannelEmail && !user.EmailVerified:
		err = common.SendCode(c, d, &user, model.ChannelEmail, user.Email, model.PurposeEmailVerify)
	case data.Channel == model.ChannelSMS && user.Phone != nil && !user.PhoneVerified:
		err = common.SendCode(c, d, &user, model.ChannelSMS, *user.Phone, model.PurposePhoneVerify)
	default:
		c.JSON(http.StatusOK, generic)
		return
	}

	if err != nil {
		if common.Cooldown(c, err) {
			return
		}

		common.Fail(c, http.StatusBadGateway, "Failed to send the code, please try again later")
		return
	}

	c.JSON(http.StatusOK, generic)
}
