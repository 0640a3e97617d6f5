package middleware

import (
	"errors"
	"net/http"

	"license-service/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type renderable interface {
	Status() errutil.CoreStatus
	JSON() interface{}
}

// Error renders the last error attached with c.Error once the handler chain
// returns. Errors that know their status are rendered as-is; anything else is
// logged and reported as an internal error.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var r renderable
		if errors.As(last.Err, &r) {
			c.JSON(r.Status().HTTPStatus(), r.JSON())
			return
		}

		zap.L().Error("unhandled request error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(last.Err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "internal server error",
			},
		})
	}
}
