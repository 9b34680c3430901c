package user

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/middleware"
	"bitwise74/cardio-api/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type phoneBody struct {
	Phone string `json:"phone"`
}

// SetPhone stores a new, unverified phone number and texts it a code
func SetPhone(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()
	p := middleware.CurrentPrincipal(c)

	var data phoneBody
	if !common.Bind(c, &data) {
		return
	}

	phone := validators.NormalizePhone(data.Phone)
	if err := validators.PhoneValidator(phone); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if p.User.Phone != nil && *p.User.Phone == phone && p.User.PhoneVerified {
		common.Fail(c, http.StatusConflict, "This phone number is already verified")
		return
	}

	// The stored number only changes once the code is on its way, a failed
	// send leaves a verified number untouched
	u := p.User
	if err := common.SendCode(c, d, &u, model.ChannelSMS, phone, model.PurposePhoneVerify); err != nil {
		if common.Cooldown(c, err) {
			return
		}

		common.Fail(c, http.StatusBadGateway, "Failed to send the code, please try again later")
		return
	}

	err := d.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", p.User.ID).
		Updates(map[string]any{"phone": phone, "phone_verified": false}).Error
	if err != nil {
		common.ServerError(c, "Failed to update phone", err)
		return
	}

	if err := d.Auth.Sessions.Refresh(ctx, p.User.ID); err != nil {
		zap.L().Warn("Failed to refresh sessions", zap.Error(err), zap.String("requestID", common.RequestID(c)))
	}

	c.JSON(http.StatusOK, gin.H{
		"phone":    phone,
		"codeSent": true,
	})
}

type phoneVerifyBody struct {
	Code string `json:"code"`
}

func VerifyPhone(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()
	p := middleware.CurrentPrincipal(c)

	var data phoneVerifyBody
	if !common.Bind(c, &data) {
		return
	}

	if data.Code == "" {
		common.Fail(c, http.StatusBadRequest, "No code provided")
		return
	}

	if p.User.Phone == nil {
		common.Fail(c, http.StatusBadRequest, "No phone number on this account")
		return
	}

	if p.User.PhoneVerified {
		common.Fail(c, http.StatusConflict, "This phone number is already verified")
		return
	}

	if _, err := d.Auth.Codes.VerifyFor(ctx, p.User.ID, *p.User.Phone, model.PurposePhoneVerify, data.Code); err != nil {
		common.CodeError(c, err)
		return
	}

	if err := d.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", p.User.ID).Update("phone_verified", true).Error; err != nil {
		common.ServerError(c, "Failed to mark phone as verified", err)
		return
	}

	if err := d.Auth.Sessions.Refresh(ctx, p.User.ID); err != nil {
		zap.L().Warn("Failed to refresh sessions", zap.Error(err), zap.String("requestID", common.RequestID(c)))
	}

	c.JSON(http.StatusOK, gin.H{
		"phone":         *p.User.Phone,
		"phoneVerified": true,
	})
}
