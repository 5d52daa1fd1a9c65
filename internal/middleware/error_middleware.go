package middleware

import (
	"github.com/gin-gonic/gin"

	"gazette-chat/internal/transport/httpdto"
	gazette_errors "gazette-chat/pkg/errors"
	"gazette-chat/pkg/logger"
)

// ErrorHandler converts errors attached via c.Error into the envelope
// format. Handlers that respond directly bypass it.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Errorf("request error: %s", err.Error())
		}
		c.JSON(gazette_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), gazette_errors.Code(err)))
	}
}
