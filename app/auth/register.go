package auth

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/security"
	"bitwise74/cardio-api/pkg/validators"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

func Register(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)

	open, err := d.Settings.Bool(c.Request.Context(), model.SettingRegistrationEnabled, true)
	if err != nil {
		common.ServerError(c, "Failed to read registration setting", err)
		return
	}

	if !open {
		common.Fail(c, http.StatusForbidden, "Registration is currently disabled")
		return
	}

	var data registerBody
	if !common.Bind(c, &data) {
		return
	}

	data.Email = common.NormalizeEmail(data.Email)
	data.FullName = strings.TrimSpace(data.FullName)

	if err := validators.EmailValidator(data.Email); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := validators.PasswordValidator(data.Password); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := validators.NameValidator(data.FullName); err != nil {
		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := d.Argon.GenerateFromPassword(data.Password)
	if err != nil {
		common.ServerError(c, "Failed to hash password", err)
		return
	}

	userID, err := security.NewID()
	if err != nil {
		common.ServerError(c, "Failed to generate user ID", err)
		return
	}

	user := model.User{
		ID:           userID,
		Email:        data.Email,
		PasswordHash: hash,
		FullName:     data.FullName,
		Active:       true,
	}

	if err := d.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			common.Fail(c, http.StatusConflict, "This email is already registered. Please login or use a different email")
			return
		}

		common.ServerError(c, "Failed to create user", err)
		return
	}

	metrics.AuthEvent("register")

	codeSent := common.SendCode(c, d, &user, model.ChannelEmail, user.Email, model.PurposeEmailVerify) == nil

	c.JSON(http.StatusCreated, gin.H{
		"userID":        userID,
		"email":         user.Email,
		"emailVerified": false,
		"codeSent":      codeSent,
	})

	zap.L().Info("User registered", zap.String("userID", userID), zap.String("requestID", requestID))
}
