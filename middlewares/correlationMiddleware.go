package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/fund_ledger/utils"
)

const CorrelationHeader = "X-Correlation-ID"

// CorrelationMiddleware propagates X-Correlation-ID, minting one when absent.
// Ledger events carry it as their correlation id.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.Request.Header.Get(CorrelationHeader)
		if cid == "" || len(cid) > 64 {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Writer.Header().Set(CorrelationHeader, cid)
		c.Next()
	}
}
