package prediction

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/predict"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/security"
	"bitwise74/cardio-api/pkg/validators"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Create(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	userID := c.GetString("userID")

	var in predict.Input
	if !common.Bind(c, &in) {
		return
	}

	in.Notes = strings.TrimSpace(in.Notes)

	if err := in.Validate(); err != nil {
		var re *validators.RangeError
		if errors.As(err, &re) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"field":     re.Field,
				"requestID": requestID,
			})
			return
		}

		common.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	result := predict.Predict(in)

	id, err := security.NewID()
	if err != nil {
		common.ServerError(c, "Failed to generate prediction ID", err)
		return
	}

	p := predict.Record(id, userID, in, result)
	p.CreatedAt = time.Now()

	if err := d.DB.WithContext(c.Request.Context()).Create(p).Error; err != nil {
		common.ServerError(c, "Failed to store prediction", err)
		return
	}

	metrics.Prediction(result.RiskLevel)

	c.JSON(http.StatusCreated, gin.H{
		"prediction": p,
	})

	zap.L().Debug("Prediction stored",
		zap.String("predictionID", id),
		zap.String("riskLevel", result.RiskLevel),
		zap.String("requestID", requestID),
	)
}
