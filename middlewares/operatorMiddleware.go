package middlewares

import (
	"strings"

	"bitbucket.org/mmdatafocus/manufacturing_backend/utils"
	"github.com/gin-gonic/gin"
)

const OperatorHeader = "X-Operator"

// OperatorMiddleware records who is working the shop floor terminal. Authentication happens upstream;
// the name is only carried into transition logs.
func OperatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := strings.TrimSpace(c.GetHeader(OperatorHeader))
		if operator == "" {
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(utils.SetOperatorInContext(c.Request.Context(), operator))
		c.Next()
	}
}
