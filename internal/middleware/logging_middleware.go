package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"gazette-chat/pkg/logger"
)

// LoggingMiddleware records one line per request after the handler chain
// completes. Client aborts still log with whatever status was written.
func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		method := c.Request.Method

		c.Next()

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log == nil {
			return
		}
		log.Infof("%s %s %d %s", method, path, c.Writer.Status(), time.Since(start).String())
	}
}
