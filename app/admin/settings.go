package admin

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/settings"
	"bitwise74/cardio-api/pkg/middleware"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ListSettings(c *gin.Context, d *internal.Deps) {
	all, err := d.Settings.All(c.Request.Context())
	if err != nil {
		common.ServerError(c, "Failed to fetch settings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"settings": all,
	})
}

type settingBody struct {
	Value string `json:"value"`
}

func PutSetting(c *gin.Context, d *internal.Deps) {
	self := middleware.CurrentPrincipal(c).User.ID
	key := c.Param("key")

	var data settingBody
	if !common.Bind(c, &data) {
		return
	}

	s, err := d.Settings.Set(c.Request.Context(), key, data.Value, &self)
	if err != nil {
		switch {
		case errors.Is(err, settings.ErrUnknownKey):
			common.Fail(c, http.StatusNotFound, "Unknown setting")
		case errors.Is(err, settings.ErrInvalidValue):
			common.Fail(c, http.StatusBadRequest, err.Error())
		default:
			common.ServerError(c, "Failed to save setting", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"setting": s,
	})

	zap.L().Info("Setting changed",
		zap.String("key", key),
		zap.String("value", data.Value),
		zap.String("adminID", self),
		zap.String("requestID", common.RequestID(c)),
	)
}
