package endpoint

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pipekit/observability"
)

// HealthChecker reports the health of one or more components.
type HealthChecker func(ctx context.Context) []observability.Health

// Health aggregates every checker into one ServiceHealth. The response is
// 503 when any component is down and 200 otherwise, degraded included.
func Health(serviceName, version string, checkers ...HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.NewServiceHealth(serviceName, version)
		for _, check := range checkers {
			for _, h := range check(c.Request.Context()) {
				sh.AddComponent(h)
			}
		}
		c.JSON(sh.HTTPStatus(), sh)
	}
}
