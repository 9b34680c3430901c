package prediction

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var riskLevels = map[string]bool{
	model.RiskLow:      true,
	model.RiskModerate: true,
	model.RiskHigh:     true,
}

// RiskFilter reads ?risk= and answers 400 for unknown levels
func RiskFilter(c *gin.Context) (string, bool) {
	risk := c.Query("risk")
	if risk != "" && !riskLevels[risk] {
		common.Fail(c, http.StatusBadRequest, "risk must be one of low, moderate, high")
		return "", false
	}

	return risk, true
}

// List returns the caller's predictions, newest first
func List(c *gin.Context, d *internal.Deps) {
	page, limit, offset := common.Paging(c)

	risk, ok := RiskFilter(c)
	if !ok {
		return
	}

	q := d.DB.WithContext(c.Request.Context()).Model(&model.Prediction{}).Where("user_id = ?", c.GetString("userID"))
	if risk != "" {
		q = q.Where("risk_level = ?", risk)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		common.ServerError(c, "Failed to count predictions", err)
		return
	}

	preds := []model.Prediction{}
	if err := q.Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&preds).Error; err != nil {
		common.ServerError(c, "Failed to fetch predictions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": preds,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

func Get(c *gin.Context, d *internal.Deps) {
	p, ok := owned(c, d)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction": p,
	})
}

func Delete(c *gin.Context, d *internal.Deps) {
	p, ok := owned(c, d)
	if !ok {
		return
	}

	if err := d.DB.WithContext(c.Request.Context()).Delete(p).Error; err != nil {
		common.ServerError(c, "Failed to delete prediction", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
	})
}

// owned loads the prediction in the :id param. Someone else's prediction is
// reported as missing so IDs can't be probed.
func owned(c *gin.Context, d *internal.Deps) (*model.Prediction, bool) {
	var p model.Prediction

	err := d.DB.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", c.Param("id"), c.GetString("userID")).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, "Prediction not found")
			return nil, false
		}

		common.ServerError(c, "Failed to fetch prediction", err)
		return nil, false
	}

	return &p, true
}
