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
	"order_payment/internal/logging"
	"order_payment/internal/middleware"
	"order_payment/internal/model"
	"order_payment/internal/order"
	"order_payment/internal/payment"
	"order_payment/internal/queue"
	"order_payment/internal/resilience"
	"order_payment/internal/router"
	"order_payment/internal/store"
	"order_payment/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(config.OrderService)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 数据库：订单表独占
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	orders := store.NewOrderStore(db)
	if err := orders.Migrate(); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis：注册中心 + 限流
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	registry := discovery.NewRedisRegistry(rdb, cfg.RegistryTTL)
	resolver := discovery.NewStaticResolver(registry).Set(cfg.PaymentServiceName, cfg.PaymentStaticURLs...)

	// 3. 支付调用：服务发现 -> HTTP -> 超时 + 熔断 + 降级
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	breakerMetrics := metrics.NewBreakerMetrics(reg, "order_service")

	client := payment.NewHTTPClient(discovery.NewRoundRobin(resolver), cfg.PaymentServiceName, &http.Client{})
	breaker := resilience.NewBreaker[*model.Payment](resilience.BreakerSettings{
		Name:                cfg.PaymentServiceName,
		ConsecutiveFailures: uint32(cfg.BreakerConsecutiveFailures),
		FailureRatio:        cfg.BreakerFailureRatio,
		MinRequests:         uint32(cfg.BreakerMinRequests),
		Window:              cfg.BreakerWindow,
		Cooldown:            cfg.BreakerCooldown,
		HalfOpenProbes:      uint32(cfg.BreakerHalfOpenProbes),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, payment.ErrRejected)
		},
	}, breakerMetrics, logger)
	layer := resilience.NewLayer(breaker, client, cfg.PaymentTimeout, breakerMetrics, logger)
	coordinator := order.NewCoordinator(layer, orders, metrics.NewBookingMetrics(reg, "order_service"), logger)

	// 4. 支付事件消费（可选）
	if cfg.KafkaEnabled() {
		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.PaymentEventTopic, cfg.PaymentEventGroup, orders, logger)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	// 5. HTTP
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(metrics.NewServerMetrics(reg, "order_service")))
	router.SetupOrder(r, router.OrderDeps{
		Booker:          coordinator,
		Orders:          orders,
		Logger:          logger,
		Gatherer:        reg,
		BookMiddlewares: []gin.HandlerFunc{middleware.RedisRateLimit(rdb, cfg.BookRateLimit, cfg.BookRateWindow)},
	})

	go discovery.Heartbeat(ctx, registry, discovery.Instance{Service: cfg.ServiceName, URL: cfg.AdvertiseURL}, cfg.HeartbeatInterval, logger)

	serve(ctx, &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}, logger.Info)
}

func serve(ctx context.Context, srv *http.Server, info func(string, ...any)) {
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	info("http server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
}
