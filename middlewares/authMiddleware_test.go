package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/utils"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware(), AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		caller := CallerFromContext(c.Request.Context())
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"identity": caller.Identity, "role": caller.Role, "cid": cid})
	})
	return r
}

func TestAuthMiddleware_PutsCallerInContext(t *testing.T) {
	token, err := utils.JwtGenerate("vendor-1", string(models.RoleVendor))
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(CorrelationHeader, "corr-123")
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `{"cid":"corr-123","identity":"vendor-1","role":"Vendor"}`
	if rec.Body.String() != want {
		t.Fatalf("expected %s, got %s", want, rec.Body.String())
	}
	if rec.Header().Get(CorrelationHeader) != "corr-123" {
		t.Fatalf("expected correlation id echoed")
	}
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	for _, header := range []string{"Bearer garbage", "Basic dXNlcjpwdw==", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		newTestRouter().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestAuthMiddleware_AnonymousPassesWithoutCaller(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(CorrelationHeader) == "" {
		t.Fatalf("expected a minted correlation id")
	}
	if got := rec.Body.String(); len(got) == 0 || got[len(got)-len(`"identity":"","role":""}`):] != `"identity":"","role":""}` {
		t.Fatalf("expected empty caller, got %s", got)
	}
}
