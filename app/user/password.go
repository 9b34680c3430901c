package user

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/internal/notify"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/middleware"
	"bitwise74/cardio-api/pkg/validators"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type passwordBody struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword sets a new password and logs out every other session
func ChangePassword(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()
	p := middleware.CurrentPrincipal(c)

	var data passwordBody
	if !common.Bind(c, &data) {
		return
	}

	ok, _, err := d.Argon.VerifyPasswd(data.CurrentPassword, p.User.PasswordHash)
	if err != nil {
		common.ServerError(c, "Failed to verify password", err)
		return
	}

	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	if err := validators.PasswordValidator(data.NewPassword); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if data.NewPassword == data.CurrentPassword {
		common.Fail(c, http.StatusBadRequest, "New password must be different from the current one")
		return
	}

	hash, err := d.Argon.GenerateFromPassword(data.NewPassword)
	if err != nil {
		common.ServerError(c, "Failed to hash password", err)
		return
	}

	if err := d.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", p.User.ID).Update("password_hash", hash).Error; err != nil {
		common.ServerError(c, "Failed to update password", err)
		return
	}

	revoked, err := d.Auth.Sessions.RevokeAll(ctx, p.User.ID, p.Token)
	if err != nil {
		zap.L().Error("Failed to revoke other sessions", zap.Error(err), zap.String("requestID", requestID))
	}

	// The cached principal of this session still holds the old hash
	if err := d.Auth.Sessions.Refresh(ctx, p.User.ID); err != nil {
		zap.L().Warn("Failed to refresh sessions", zap.Error(err), zap.String("requestID", requestID))
	}

	n := notify.PasswordChanged(d.Config.App.Name, time.Now()).To(model.ChannelEmail, p.User.Email)
	if err := d.Notifier.Notify(ctx, n); err != nil {
		zap.L().Warn("Failed to send password changed notice", zap.Error(err), zap.String("requestID", requestID))
	}

	metrics.AuthEvent("password_changed")

	c.JSON(http.StatusOK, gin.H{
		"message":         "Password updated",
		"revokedSessions": revoked,
	})
}
