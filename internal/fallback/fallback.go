// Package fallback 提供依赖不可用时的固定降级响应。
package fallback

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response 降级响应体，HTTP 状态固定为 503。
type Response struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func Order(now time.Time) Response {
	return Response{
		Service:   "order-service",
		Status:    "unavailable",
		Message:   "Order service is currently unavailable. Please try again later.",
		Timestamp: now,
	}
}

func Payment(now time.Time) Response {
	return Response{
		Service:   "payment-service",
		Status:    "unavailable",
		Message:   "Payment service is currently unavailable. Please try again later.",
		Timestamp: now,
	}
}

// ForService 按上游服务选择降级体，未知服务使用通用文案。
func ForService(service string, now time.Time) Response {
	switch service {
	case "order-service":
		return Order(now)
	case "payment-service":
		return Payment(now)
	}
	return Response{
		Service:   service,
		Status:    "unavailable",
		Message:   "Service is currently unavailable. Please try again later.",
		Timestamp: now,
	}
}

// Register 挂载 /fallback/order 与 /fallback/payment。
func Register(r gin.IRouter, logger *slog.Logger) {
	g := r.Group("/fallback")
	g.GET("/order", handler(logger, "order service fallback activated", Order))
	g.GET("/payment", handler(logger, "payment service fallback activated", Payment))
}

func handler(logger *slog.Logger, msg string, build func(time.Time) Response) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Warn(msg)
		c.JSON(http.StatusServiceUnavailable, build(time.Now()))
	}
}
