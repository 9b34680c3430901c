package prediction

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Export hands out the caller's history as CSV. With object storage enabled
// the answer is a short lived download URL, otherwise the file itself.
func Export(c *gin.Context, d *internal.Deps) {
	userID := c.GetString("userID")

	var preds []model.Prediction
	if err := d.DB.WithContext(c.Request.Context()).Where("user_id = ?", userID).Order("created_at DESC").Find(&preds).Error; err != nil {
		common.ServerError(c, "Failed to fetch predictions", err)
		return
	}

	exp, err := d.Exporter.Export(c.Request.Context(), userID, preds)
	if err != nil {
		common.ServerError(c, "Failed to export predictions", err)
		return
	}

	if exp.URL != "" {
		c.JSON(http.StatusOK, gin.H{
			"url":       exp.URL,
			"filename":  exp.Filename,
			"expiresAt": exp.ExpiresAt,
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", exp.Data)
}
