package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sbw-site/geotrack/internal/pkg/response"
)

const rateLimitWindow = time.Second

// RateLimit enforces a fixed one-second window of max requests per client
// IP using Redis INCR. Authenticated admins and Redis outages pass through.
func RateLimit(rdb *redis.Client, max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || max <= 0 || IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("geotrack:rate_limit:%s:%d", ip, time.Now().Unix())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > max {
			c.Header("Retry-After", "1")
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
