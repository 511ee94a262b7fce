package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// permissionMatches reports whether one granted permission satisfies
// `required`. "*" grants everything; "fixtures.*" grants "fixtures.read",
// "fixtures.write" and "fixtures" itself; anything else must match exactly.
func permissionMatches(granted, required string) bool {
	if granted == "*" || granted == required {
		return true
	}
	if strings.HasSuffix(granted, ".*") {
		prefix := strings.TrimSuffix(granted, ".*")
		return prefix != "" && (required == prefix || strings.HasPrefix(required, prefix+"."))
	}
	return false
}

// HasPermission returns true if `required` is satisfied by any permission in
// `granted`. An empty requirement always passes.
func HasPermission(granted []string, required string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return true
	}
	for _, p := range granted {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if permissionMatches(p, required) {
			return true
		}
	}
	return false
}

func getGrantedPermissions(c *gin.Context) []string {
	if v, ok := c.Get("permissions"); ok {
		if perms, ok := v.([]string); ok {
			return perms
		}
	}
	return nil
}

func abortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":   "Forbidden",
		"message": "insufficient permission",
	})
}

// RequirePermissionsAny requires the caller to hold at least one of the
// listed permissions.
func RequirePermissionsAny(required ...string) gin.HandlerFunc {
	req := make([]string, 0, len(required))
	for _, r := range required {
		if s := strings.TrimSpace(r); s != "" {
			req = append(req, s)
		}
	}
	return func(c *gin.Context) {
		granted := getGrantedPermissions(c)
		for _, r := range req {
			if HasPermission(granted, r) {
				c.Next()
				return
			}
		}
		abortForbidden(c)
	}
}

// RequirePermissionsAll requires the caller to hold every listed permission.
func RequirePermissionsAll(required ...string) gin.HandlerFunc {
	req := make([]string, 0, len(required))
	for _, r := range required {
		if s := strings.TrimSpace(r); s != "" {
			req = append(req, s)
		}
	}
	return func(c *gin.Context) {
		granted := getGrantedPermissions(c)
		for _, r := range req {
			if !HasPermission(granted, r) {
				abortForbidden(c)
				return
			}
		}
		c.Next()
	}
}

// RequireResourcePermission gates one API resource ("leagues", "fixtures",
// "predictions"): safe methods need "<resource>.read", mutating methods need
// "<resource>.write". "<resource>.*" and "*" grant both.
func RequireResourcePermission(resource string) gin.HandlerFunc {
	resource = strings.TrimSpace(resource)
	return func(c *gin.Context) {
		perm := resource + ".write"
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			perm = resource + ".read"
		}
		RequirePermissionsAny(perm, resource+".*", "*")(c)
	}
}
