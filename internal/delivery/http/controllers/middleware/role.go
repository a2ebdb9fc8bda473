package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RequireRoles lets the request through when the user holds any of the roles.
func RequireRoles(allowedRoles ...string) gin.HandlerFunc {
	allowed := func(role string) bool { return slices.Contains(allowedRoles, role) }
	return func(c *gin.Context) {
		raw, exists := c.Get(ClientRolesCtx)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "roles not found"})
			return
		}
		roles, ok := raw.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "invalid roles format"})
			return
		}
		if !slices.ContainsFunc(roles, allowed) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
