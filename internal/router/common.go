package router

import (
	"errors"
	"net/http"

	"order_payment/internal/model"
	"order_payment/internal/store"
	"order_payment/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// setupCommon 注册 /health 与 /metrics。
func setupCommon(r *gin.Engine, service string, gatherer prometheus.Gatherer) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.HandlerFor(gatherer)))
	}
}

// writeError 把错误分类映射为 HTTP 状态：校验 400，不存在 404，非法迁移 409，其余 500。
func writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case model.IsValidation(err):
		code = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		code = http.StatusConflict
	}
	c.JSON(code, gin.H{"code": code, "msg": err.Error()})
}
