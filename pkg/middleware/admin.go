package middleware

import (
	"crypto/subtle"

	"license-service/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards administrative routes with a shared key. An empty key
// leaves the routes open, which is how local development runs.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		got := c.GetHeader(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			err := errutil.Unauthorized("missing or invalid admin key", nil).(errutil.BaseError)
			c.AbortWithStatusJSON(err.Code.HTTPStatus(), err.JSON())
			return
		}

		c.Next()
	}
}
