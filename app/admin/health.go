package admin

import (
	"bitwise74/cardio-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health is the detailed report, probe errors included
func Health(c *gin.Context, d *internal.Deps) {
	report := d.Health.Check(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"health":  report,
		"runtime": d.Health.Runtime(),
	})
}
