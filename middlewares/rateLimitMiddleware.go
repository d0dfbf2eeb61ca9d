package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter kept in redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// key buckets authenticated callers by identity and anonymous ones by IP.
func (rl *RateLimiter) key(c *gin.Context) string {
	caller := CallerFromContext(c.Request.Context())
	if caller.Identity != "" {
		return fmt.Sprintf("ratelimit:caller:%s", caller.Identity)
	}
	return fmt.Sprintf("ratelimit:ip:%s", c.ClientIP())
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := rl.key(c)
	ctx := c.Request.Context()

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}
