package root

import (
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/health"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Heartbeat answers load balancer liveness checks, it never touches a dependency
func Heartbeat(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
}

// Health reports the status of every dependency without error details
func Health(c *gin.Context, d *internal.Deps) {
	report := d.Health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, report.Public())
}
