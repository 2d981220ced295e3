package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/opsledger/backend/pkg/response"
)

// RequireGlobalRole returns a middleware that allows only the given
// platform-wide roles (e.g. superadmin for the global cockpit).
func RequireGlobalRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
