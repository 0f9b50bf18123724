package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth enforces bearer admin tokens. With no PIN configured every
// request passes.
func AdminAuth(pin PIN, issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pin.Enabled() {
			c.Next()
			return
		}
		authz := c.GetHeader("Authorization")
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "UNAUTHORIZED"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		if _, err := issuer.Parse(tokenStr); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "UNAUTHORIZED"})
			return
		}
		c.Next()
	}
}
