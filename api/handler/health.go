package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rednote/models"
)

// Version is stamped into health responses.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when the cookie jar is empty: scrapes still run but
// most note pages answer with the login wall.
func Health(startTime time.Time, cookieCount func() int, loginState func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if cookieCount() == 0 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			LoginState: loginState(),
			Version:    Version,
		})
	}
}
