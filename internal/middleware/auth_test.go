package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	am := NewAuthMiddleware(log)
	r := gin.New()
	r.GET("/probe", am.RequireCredential(), func(c *gin.Context) {
		c.String(http.StatusOK, Credential(c))
	})
	return r
}

func TestRequireCredentialBearerHeader(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "tok-123" {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestRequireCredentialQueryParam(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe?token=tok-456", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "tok-456" {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestRequireCredentialMissing(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
