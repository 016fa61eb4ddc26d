package mw

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

const rateLimitWindow = time.Second

// RateLimit allows limitPerSec requests per client IP per second window, counted in redis.
// Redis failures let the request through.
func RateLimit(rdb *redis.Client, limitPerSec int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limitPerSec <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		window := time.Now().Unix()
		key := "ratelimit:" + c.ClientIP() + ":" + strconv.FormatInt(window, 10)
		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*rateLimitWindow)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}
		if incr.Val() > int64(limitPerSec) {
			c.Header("Retry-After", "1")
			resp.Abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limitPerSec))
		c.Next()
	}
}
