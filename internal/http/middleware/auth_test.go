package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/platform/ctxutil"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/services"
)

func newAuthRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService(logger.Nop(), "test-secret", time.Hour)
	am := NewAuthMiddleware(logger.Nop(), auth)

	r := gin.New()
	api := r.Group("/api", am.RequireAuth())
	api.GET("/whoami", func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.String(http.StatusOK, rd.ActorID.String())
	})
	api.POST("/admin/ping", am.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, auth
}

func TestRequireAuth(t *testing.T) {
	r, auth := newAuthRouter(t)
	actor := uuid.New()
	tok, err := auth.MintToken(actor, "", 0)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"bearer", "/api/whoami", "Bearer " + tok, http.StatusOK},
		{"query token", "/api/whoami?token=" + tok, "", http.StatusOK},
		{"missing", "/api/whoami", "", http.StatusUnauthorized},
		{"garbage", "/api/whoami", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status got=%d want=%d", tc.name, rec.Code, tc.status)
		}
		if tc.status == http.StatusOK && rec.Body.String() != actor.String() {
			t.Fatalf("%s: actor got=%q", tc.name, rec.Body.String())
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	r, auth := newAuthRouter(t)
	player, _ := auth.MintToken(uuid.New(), "", 0)
	admin, _ := auth.MintToken(uuid.New(), services.RoleAdmin, 0)

	for tok, want := range map[string]int{player: http.StatusForbidden, admin: http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("status got=%d want=%d", rec.Code, want)
		}
	}
}
