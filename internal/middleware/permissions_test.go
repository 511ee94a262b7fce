package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHasPermission_WildcardsAndExact(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{"star", []string{"*"}, "fixtures.read", true},
		{"exact", []string{"fixtures.read"}, "fixtures.read", true},
		{"prefixStar", []string{"predictions.*"}, "predictions.read", true},
		{"prefixStarNested", []string{"predictions.*"}, "predictions.write", true},
		{"noMatch", []string{"leagues.read"}, "fixtures.read", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermission(tt.granted, tt.required); got != tt.want {
				t.Fatalf("HasPermission(%v, %q)=%v want %v", tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestRequireResourcePermission_ReadWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("permissions", []string{"predictions.read"})
		c.Next()
	})
	r.Use(RequireResourcePermission("predictions"))
	r.GET("/predictions", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.POST("/predictions", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// GET allowed with predictions.read
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/predictions", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET expected 200 got %d", w.Code)
	}

	// POST forbidden without predictions.write
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodPost, "/predictions", nil)
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusForbidden {
		t.Fatalf("POST expected 403 got %d", w2.Code)
	}
}
