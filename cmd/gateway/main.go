package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order_payment/internal/config"
	"order_payment/internal/discovery"
	"order_payment/internal/gateway"
	"order_payment/internal/logging"
	"order_payment/internal/middleware"
	"order_payment/internal/resilience"
	"order_payment/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(config.GatewayService)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	resolver := discovery.NewStaticResolver(discovery.NewRedisRegistry(rdb, cfg.RegistryTTL)).
		Set(cfg.OrderServiceName, cfg.OrderStaticURLs...).
		Set(cfg.PaymentServiceName, cfg.PaymentStaticURLs...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gw := gateway.New(discovery.NewRoundRobin(resolver), []gateway.Route{
		{Prefix: "/order", Service: cfg.OrderServiceName},
		{Prefix: "/payment", Service: cfg.PaymentServiceName},
	}, resilience.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.BreakerConsecutiveFailures),
		FailureRatio:        cfg.BreakerFailureRatio,
		MinRequests:         uint32(cfg.BreakerMinRequests),
		Window:              cfg.BreakerWindow,
		Cooldown:            cfg.BreakerCooldown,
		HalfOpenProbes:      uint32(cfg.BreakerHalfOpenProbes),
	}, cfg.PaymentTimeout*2, metrics.NewBreakerMetrics(reg, "gateway"), logger)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(metrics.NewServerMetrics(reg, "gateway")))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})
	r.GET("/metrics", gin.WrapH(metrics.HandlerFor(reg)))
	gw.Register(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	logger.Info("http server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
}
