package router

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"order_payment/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentExecutor 执行支付。
type PaymentExecutor interface {
	DoPayment(ctx context.Context, p model.Payment) (*model.Payment, error)
}

// PaymentReader 支付记录只读投影。
type PaymentReader interface {
	Get(ctx context.Context, id uint) (*model.Payment, error)
	List(ctx context.Context) ([]model.Payment, error)
}

type PaymentDeps struct {
	Executor PaymentExecutor
	Payments PaymentReader
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
}

// SetupPayment 注册 payment-service 全部 HTTP 路由。
func SetupPayment(r *gin.Engine, d PaymentDeps) {
	setupCommon(r, "payment-service", d.Gatherer)

	g := r.Group("/payment")
	g.POST("/doPayment", doPayment(d.Executor, d.Logger))
	g.GET("/all", listPayments(d.Payments))
	g.GET("/:id", getPayment(d.Payments))
}

// doPayment 金额非法返回 400，内部失败返回 500。
func doPayment(exec PaymentExecutor, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p model.Payment
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		out, err := exec.DoPayment(c.Request.Context(), p)
		if err != nil {
			if model.IsValidation(err) {
				logger.Warn("invalid payment request", "order_id", p.OrderID, "amount", p.Amount, "err", err)
			} else {
				logger.Error("payment processing failed", "order_id", p.OrderID, "err", err)
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func listPayments(payments PaymentReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := payments.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if list == nil {
			list = []model.Payment{}
		}
		c.JSON(http.StatusOK, list)
	}
}

func getPayment(payments PaymentReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid payment id"})
			return
		}
		p, err := payments.Get(c.Request.Context(), uint(id))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
