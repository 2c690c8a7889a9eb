package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"casino-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role != "" {
			ctx := auth.WithPrincipal(c.Request.Context(), auth.Principal{UserID: "u", Role: role})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serve(t, withRole(RoleSuperAdmin), RequireAnyRole(RoleComplianceOfficer)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_PlayerDenied(t *testing.T) {
	if code := serve(t, withRole(RolePlayer), RequireAnyRole(RoleAdmin)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingPrincipal(t *testing.T) {
	if code := serve(t, withRole(""), RequireAnyRole(RoleAdmin)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
