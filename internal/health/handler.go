package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the report as JSON. An unhealthy report is answered
// with 503 so load balancers can act on it.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Report(ctx.Request.Context())

		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, report)
	}
}
