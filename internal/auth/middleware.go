package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxWriterClaims = "ledger_writer_claims"

// RequireWriter returns a Gin middleware that enforces a valid writer Bearer
// token. When tokens is nil every request passes.
func RequireWriter(tokens *TokenIssuer) gin.HandlerFunc {
	if tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer writer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid writer token: " + err.Error(),
			})
			return
		}

		c.Set(ctxWriterClaims, claims)
		c.Next()
	}
}

// WriterFromContext returns the claims stored by RequireWriter, or nil.
func WriterFromContext(c *gin.Context) *WriterClaims {
	v, ok := c.Get(ctxWriterClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*WriterClaims)
	return claims
}
