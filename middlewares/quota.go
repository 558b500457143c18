package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type QuotaRule struct {
	Limit  int           // 配額上限（一個 Window 內允許多少次請求）
	Window time.Duration // 視窗大小，例如 24 小時
	// KeyFn selects the counter; an empty key skips the quota.
	KeyFn func(*gin.Context) string
}

// Quota counts requests per key in Redis and rejects with 429 once Limit is
// exceeded within Window. A Redis outage lets requests through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.KeyFn(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		// INCR 每次請求 +1；key 不存在時 Redis 會從 0 開始
		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next() // Redis 掛了 → 降級放行
			return
		}
		// 第一次建立 key 才設 Window，到期自動刪掉
		if n == 1 {
			_ = rdb.Expire(ctx, key, rule.Window).Err()
		}
		if int(n) > rule.Limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Usage quota exceeded. Please try again later.",
			})
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit)) // X-Quota-Used: 5/20
		c.Next()
	}
}
