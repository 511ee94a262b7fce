package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// rolesFromContext reads the "roles" value set by AuthMiddleware. Tokens
// minted by the CLI carry a string slice; older service tokens may carry a
// single role string.
func rolesFromContext(c *gin.Context) []string {
	v, ok := c.Get("roles")
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		var roles []string
		for _, it := range t {
			if s, ok := it.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}

// RequireRolesAny admits callers holding at least one of the required roles.
// The automation surfaces are registered behind
// RequireRolesAny("admin", "service") so the external scheduler's service
// token and human operators both pass.
func RequireRolesAny(required ...string) gin.HandlerFunc {
	reqSet := make(map[string]struct{}, len(required))
	for _, r := range required {
		reqSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		for _, r := range rolesFromContext(c) {
			if _, ok := reqSet[r]; ok {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "Forbidden",
			"message": "insufficient role",
		})
	}
}
