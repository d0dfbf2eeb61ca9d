package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fund_ledger/appctx"
	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/utils"
)

// AuthMiddleware verifies the bearer token and puts the caller identity and
// role in the request context. Requests without a token pass through with
// no caller; the ledger refuses them as unauthorized.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		claims, err := utils.ParseCallerClaims(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithCaller(c.Request.Context(), claims.Identity, claims.Role))
		c.Next()
	}
}

// CallerFromContext returns the verified caller, or the zero Caller when the
// request carried no token.
func CallerFromContext(ctx context.Context) ledger.Caller {
	identity, role := appctx.Caller(ctx)
	return ledger.NewCaller(identity, models.Role(role))
}
