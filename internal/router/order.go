package router

import (
	"context"
	"log/slog"
	"net/http"

	"order_payment/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Booker 下单协调器。
type Booker interface {
	BookOrder(ctx context.Context, order model.Order, draft model.Payment) (*model.TransactionResponse, error)
}

// OrderReader 订单只读投影与取消。
type OrderReader interface {
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error)
}

type OrderDeps struct {
	Booker   Booker
	Orders   OrderReader
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	// Middlewares 挂在 bookOrder 前，例如限流。
	BookMiddlewares []gin.HandlerFunc
}

// SetupOrder 注册 order-service 全部 HTTP 路由。
func SetupOrder(r *gin.Engine, d OrderDeps) {
	setupCommon(r, "order-service", d.Gatherer)

	g := r.Group("/order")
	book := append([]gin.HandlerFunc{}, d.BookMiddlewares...)
	g.POST("/bookOrder", append(book, bookOrder(d.Booker, d.Logger))...)
	g.GET("/all", listOrders(d.Orders))
	g.GET("/:id", getOrder(d.Orders))
	g.POST("/:id/cancel", cancelOrder(d.Orders, d.Logger))
}

// bookOrder 下单入口；支付侧故障不会变成错误响应，只影响 message。
// 没有幂等键，重复提交会生成重复订单。
func bookOrder(b Booker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.TransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		logger.Info("order booking request received", "name", req.Order.Name, "customer_id", req.Order.CustomerID)

		resp, err := b.BookOrder(c.Request.Context(), req.Order, req.Payment)
		if err != nil {
			logger.Warn("order booking failed", "err", err)
			writeError(c, err)
			return
		}
		logger.Info("order booking completed", "order_id", resp.Order.ID, "message", resp.Message)
		c.JSON(http.StatusOK, resp)
	}
}

func listOrders(orders OrderReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := orders.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if list == nil {
			list = []model.Order{}
		}
		c.JSON(http.StatusOK, list)
	}
}

func getOrder(orders OrderReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// cancelOrder 仅 PENDING 订单可取消。
func cancelOrder(orders OrderReader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		o, err := orders.UpdateStatus(c.Request.Context(), id, model.OrderCancelled)
		if err != nil {
			writeError(c, err)
			return
		}
		logger.Info("order cancelled", "order_id", id)
		c.JSON(http.StatusOK, o)
	}
}
