// README: Structured request logging.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"dot/internal/logger"
)

func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)))
	}
}
