package user

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/account"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/middleware"
	"bitwise74/cardio-api/pkg/validators"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Me(c *gin.Context, d *internal.Deps) {
	var user model.User
	if err := d.DB.WithContext(c.Request.Context()).Where("id = ?", c.GetString("userID")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, "User not found")
			return
		}

		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	var count int64
	if err := d.DB.WithContext(c.Request.Context()).Model(&model.Prediction{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		common.ServerError(c, "Failed to count predictions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":            user,
		"predictionCount": count,
	})
}

// Pointers tell "not sent" apart from "cleared"
type updateBody struct {
	FullName    *string `json:"fullName"`
	DateOfBirth *string `json:"dateOfBirth"`
	Gender      *string `json:"gender"`
}

func UpdateMe(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()
	userID := c.GetString("userID")

	var data updateBody
	if !common.Bind(c, &data) {
		return
	}

	updates := map[string]any{}

	if data.FullName != nil {
		name := strings.TrimSpace(*data.FullName)
		if err := validators.NameValidator(name); err != nil {
			common.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		updates["full_name"] = name
	}

	if data.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*data.Gender))
		if err := validators.GenderValidator(g); err != nil {
			common.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		updates["gender"] = g
	}

	if data.DateOfBirth != nil {
		if *data.DateOfBirth == "" {
			updates["date_of_birth"] = nil
		} else {
			dob, err := time.Parse(time.DateOnly, *data.DateOfBirth)
			if err != nil {
				common.Fail(c, http.StatusBadRequest, "Date of birth must be formatted as YYYY-MM-DD")
				return
			}

			if dob.After(time.Now()) || dob.Year() < 1900 {
				common.Fail(c, http.StatusBadRequest, "Date of birth is out of range")
				return
			}
			updates["date_of_birth"] = dob
		}
	}

	if len(updates) == 0 {
		common.Fail(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := d.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		common.ServerError(c, "Failed to update user", err)
		return
	}

	// Cached principals carry the old profile
	if err := d.Auth.Sessions.Refresh(ctx, userID); err != nil {
		zap.L().Warn("Failed to refresh sessions", zap.Error(err), zap.String("requestID", common.RequestID(c)))
	}

	var user model.User
	if err := d.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

type deleteBody struct {
	Password string `json:"password"`
}

// DeleteMe removes the account and everything it owns after the password is
// confirmed
func DeleteMe(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()
	p := middleware.CurrentPrincipal(c)

	var data deleteBody
	if !common.Bind(c, &data) {
		return
	}

	ok, _, err := d.Argon.VerifyPasswd(data.Password, p.User.PasswordHash)
	if err != nil {
		common.ServerError(c, "Failed to verify password", err)
		return
	}

	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Incorrect password")
		return
	}

	if err := account.Delete(ctx, d.DB, d.Auth.Sessions, p.User.ID); err != nil {
		common.ServerError(c, "Failed to delete account", err)
		return
	}

	middleware.ClearSessionCookies(c, d.Secure())
	metrics.AuthEvent("account_deleted")

	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
	})

	zap.L().Info("Account deleted", zap.String("userID", p.User.ID), zap.String("requestID", requestID))
}
