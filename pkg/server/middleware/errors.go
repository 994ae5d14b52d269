package middleware

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/pkg/server/framework"
)

// Errors handles errors coming out of the call stack. Safe application errors
// were already responded to by the router; a shutdown-worthy error signals a
// graceful stop.
func Errors(shutdown chan os.Signal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ginErrors := c.Errors.ByType(gin.ErrorTypeAny)
		if len(ginErrors) == 0 {
			return
		}
		for _, e := range ginErrors {
			if framework.IsShutdown(e.Err) {
				logrus.WithError(e.Err).Error("unsafe error, shutting down")
				shutdown <- os.Interrupt
				return
			}
		}
		logrus.Errorf("request errors: %v", ginErrors)
	}
}
