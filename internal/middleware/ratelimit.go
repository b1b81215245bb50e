package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	rediskey "order_payment/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳，ARGV[2]=窗口开始时间戳，ARGV[3]=窗口秒数，ARGV[4]=成员，ARGV[5]=上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit 下单接口分布式限流（Lua 原子操作 + 按 customer_id）。
// Redis 不可用时放行，限流本身不能成为下单的单点。
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if customerID := extractCustomerID(c); customerID != "" {
			key = rediskey.RateLimitUserKey(customerID)
		} else {
			key = rediskey.RateLimitIPKey(c.ClientIP())
		}

		now := time.Now()
		nowMS := now.UnixMilli()
		windowSec := int64(math.Ceil(window.Seconds()))
		if windowSec < 1 {
			windowSec = 1
		}
		windowStart := nowMS - window.Milliseconds()
		member := fmt.Sprintf("%d-%d", nowMS, now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMS, windowStart, windowSec, member, limit).Int()
		if err != nil {
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "too many requests, please retry later",
			})
			return
		}
		c.Next()
	}
}

// maxPeekBody 限流只解析前 1 MiB，超出时按 IP 限流。
const maxPeekBody = 1 << 20

// extractCustomerID 从 bookOrder 请求体读取 order.customer_id（不消耗 body，可重复读）。
func extractCustomerID(c *gin.Context) string {
	body := c.Request.Body
	peeked, err := io.ReadAll(io.LimitReader(body, maxPeekBody+1))
	// 已读部分拼回原 body，后续 handler 看到的仍是完整请求
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(peeked), body), body}
	if err != nil || len(peeked) > maxPeekBody {
		return ""
	}

	var req struct {
		Order struct {
			CustomerID string `json:"customer_id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(peeked, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Order.CustomerID)
}
