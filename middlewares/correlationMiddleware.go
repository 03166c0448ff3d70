package middlewares

import (
	"bitbucket.org/mmdatafocus/manufacturing_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const CorrelationIdHeader = "X-Correlation-ID"

// CorrelationMiddleware generates the correlation id once per request, attaches it to the context
// and echoes it back. Ledger entries and events posted by the request carry the same id.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationIdHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header(CorrelationIdHeader, cid)
		c.Next()
	}
}
