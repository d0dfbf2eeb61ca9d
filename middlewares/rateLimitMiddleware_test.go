package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(), NewRateLimiter(client, 2, time.Minute).RateLimitMiddleware)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for i, want := range []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests} {
		if got := get(); got != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, got)
		}
	}
	if ttl := mr.TTL("ratelimit:ip:10.0.0.7"); ttl != time.Minute {
		t.Fatalf("expected window ttl 1m, got %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if got := get(); got != http.StatusNoContent {
		t.Fatalf("expected window reset, got %d", got)
	}
}
