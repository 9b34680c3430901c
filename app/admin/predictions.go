package admin

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/app/prediction"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type adminPrediction struct {
	model.Prediction
	OwnerID   string `json:"userID"`
	UserEmail string `json:"userEmail"`
}

// ListPredictions shows every user's predictions with the owner's email
func ListPredictions(c *gin.Context, d *internal.Deps) {
	page, limit, offset := common.Paging(c)

	risk, ok := prediction.RiskFilter(c)
	if !ok {
		return
	}

	q := d.DB.WithContext(c.Request.Context()).Model(&model.Prediction{})
	if risk != "" {
		q = q.Where("predictions.risk_level = ?", risk)
	}

	if userID := c.Query("userID"); userID != "" {
		q = q.Where("predictions.user_id = ?", userID)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		common.ServerError(c, "Failed to count predictions", err)
		return
	}

	rows := []adminPrediction{}
	err := q.Select("predictions.*, predictions.user_id AS owner_id, users.email AS user_email").
		Joins("JOIN users ON users.id = predictions.user_id").
		Order("predictions.created_at DESC").
		Order("predictions.id").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		common.ServerError(c, "Failed to fetch predictions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": rows,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}
