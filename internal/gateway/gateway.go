// Package gateway 边缘路由：按逻辑服务名转发，每条路由独立熔断，失败时返回降级体。
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"order_payment/internal/discovery"
	"order_payment/internal/fallback"
	"order_payment/internal/resilience"
	"order_payment/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Picker 按逻辑服务名选出一个实例。
type Picker interface {
	Pick(ctx context.Context, service string) (discovery.Instance, error)
}

// Route 前缀到逻辑服务的映射，例如 /order -> order-service。
type Route struct {
	Prefix  string
	Service string
}

type Gateway struct {
	picker    Picker
	routes    []Route
	breakers  map[string]*resilience.Breaker[struct{}]
	transport http.RoundTripper
	logger    *slog.Logger
}

// New 为每个上游服务创建一个熔断器；settings 的 Name 会被覆盖为服务名。
func New(picker Picker, routes []Route, settings resilience.BreakerSettings, timeout time.Duration, m *metrics.BreakerMetrics, logger *slog.Logger) *Gateway {
	g := &Gateway{
		picker:   picker,
		routes:   routes,
		breakers: make(map[string]*resilience.Breaker[struct{}], len(routes)),
		logger:   logger,
	}
	for _, rt := range routes {
		if _, ok := g.breakers[rt.Service]; ok {
			continue
		}
		s := settings
		s.Name = rt.Service
		g.breakers[rt.Service] = resilience.NewBreaker[struct{}](s, m, logger)
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	g.transport = tr
	return g
}

// Register 挂载转发路由与 /fallback/*。
func (g *Gateway) Register(r *gin.Engine) {
	fallback.Register(r, g.logger)
	for _, rt := range g.routes {
		r.Any(rt.Prefix+"/*path", g.proxy(rt))
	}
}

func (g *Gateway) Breaker(service string) *resilience.Breaker[struct{}] {
	return g.breakers[service]
}

func (g *Gateway) proxy(rt Route) gin.HandlerFunc {
	b := g.breakers[rt.Service]
	return func(c *gin.Context) {
		_, err := b.Execute(func() (struct{}, error) {
			return struct{}{}, g.forward(c, rt.Service)
		})
		if err == nil {
			return
		}
		g.logger.Warn(rt.Service+" fallback activated",
			"path", c.Request.URL.Path,
			"breaker", b.State().String(),
			"reason", err.Error(),
		)
		if !c.Writer.Written() {
			c.JSON(http.StatusServiceUnavailable, fallback.ForService(rt.Service, time.Now()))
		}
	}
}

// forward 单次转发；上游 5xx 与传输错误都算失败，且不把上游响应写回客户端。
func (g *Gateway) forward(c *gin.Context, service string) error {
	inst, err := g.picker.Pick(c.Request.Context(), service)
	if err != nil {
		return err
	}
	target, err := url.Parse(inst.URL)
	if err != nil {
		return fmt.Errorf("instance url %q: %w", inst.URL, err)
	}

	var proxyErr error
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: g.transport,
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%s upstream status %d", service, resp.StatusCode)
			}
			return nil
		},
		ErrorHandler: func(_ http.ResponseWriter, _ *http.Request, err error) {
			proxyErr = err
		},
	}
	rp.ServeHTTP(c.Writer, c.Request)
	return proxyErr
}
