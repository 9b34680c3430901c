package admin

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Overridden in tests
var nowFunc = time.Now

// Stats feeds the dashboard summary cards. The route is cached for 30s.
func Stats(c *gin.Context, d *internal.Deps) {
	s, err := computeStats(c.Request.Context(), d, nowFunc())
	if err != nil {
		common.ServerError(c, "Failed to compute stats", err)
		return
	}

	c.JSON(http.StatusOK, s)
}

func computeStats(ctx context.Context, d *internal.Deps, now time.Time) (*model.Stats, error) {
	db := d.DB.WithContext(ctx)
	users := func() *gorm.DB { return db.Model(&model.User{}) }
	preds := func() *gorm.DB { return db.Model(&model.Prediction{}) }

	y, m, day := now.Date()
	midnight := time.Date(y, m, day, 0, 0, 0, 0, now.Location())

	s := &model.Stats{RiskBreakdown: map[string]int64{
		model.RiskLow:      0,
		model.RiskModerate: 0,
		model.RiskHigh:     0,
	}}

	counts := []struct {
		dst *int64
		q   *gorm.DB
	}{
		{&s.TotalUsers, users()},
		{&s.VerifiedUsers, users().Where("email_verified = ?", true)},
		{&s.AdminUsers, users().Where("is_admin = ?", true)},
		{&s.NewUsersThisWeek, users().Where("created_at >= ?", now.Add(-7*24*time.Hour))},
		{&s.TotalPredictions, preds()},
		{&s.PredictionsToday, preds().Where("created_at >= ?", midnight)},
	}

	for _, q := range counts {
		if err := q.q.Count(q.dst).Error; err != nil {
			return nil, err
		}
	}

	var rows []struct {
		RiskLevel string
		Count     int64
	}
	if err := preds().Select("risk_level, COUNT(*) AS count").Group("risk_level").Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, r := range rows {
		s.RiskBreakdown[r.RiskLevel] = r.Count
	}

	active, err := d.Auth.Sessions.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	s.ActiveSessions = active

	return s, nil
}
