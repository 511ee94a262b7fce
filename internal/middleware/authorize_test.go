package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRoleTestRouter(roles interface{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if roles != nil {
		r.Use(func(c *gin.Context) {
			c.Set("roles", roles)
			c.Next()
		})
	}
	r.Use(RequireRolesAny("admin", "service"))
	r.POST("/automation/trigger", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	return r
}

func TestRequireRolesAny_AutomationSurface(t *testing.T) {
	tests := []struct {
		name  string
		roles interface{}
		want  int
	}{
		{"admin", []string{"admin"}, http.StatusOK},
		{"serviceToken", []string{"service"}, http.StatusOK},
		{"viewerOnly", []string{"viewer"}, http.StatusForbidden},
		{"noRoles", nil, http.StatusForbidden},
		{"interfaceSlice", []interface{}{"service"}, http.StatusOK},
		{"singleString", "admin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoleTestRouter(tt.roles)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/automation/trigger", nil)
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("roles %v: status = %d, want %d", tt.roles, w.Code, tt.want)
			}
		})
	}
}
