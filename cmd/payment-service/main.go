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
	"order_payment/internal/payment"
	"order_payment/internal/queue"
	"order_payment/internal/router"
	"order_payment/internal/store"
	"order_payment/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(config.PaymentService)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	payments := store.NewPaymentStore(db)
	if err := payments.Migrate(); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB, ContextTimeoutEnabled: true})
	defer rdb.Close()

	executor := payment.NewExecutor(payments, payment.ProbabilityPolicy{Rate: cfg.PaymentSuccessRate},
		eventPublisher(cfg, rdb), logger)
	if cfg.KafkaEnabled() {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.PaymentEventTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, cfg.PaymentEventStream, cfg.PaymentEventStreamGroup, cfg.PaymentEventStreamConsumer, logger)
		go relay.Run(ctx)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(metrics.NewServerMetrics(reg, "payment_service")))
	router.SetupPayment(r, router.PaymentDeps{
		Executor: executor,
		Payments: payments,
		Logger:   logger,
		Gatherer: reg,
	})

	registry := discovery.NewRedisRegistry(rdb, cfg.RegistryTTL)
	go discovery.Heartbeat(ctx, registry, discovery.Instance{Service: cfg.ServiceName, URL: cfg.AdvertiseURL}, cfg.HeartbeatInterval, logger)

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

// eventPublisher 结算事件先进 Redis Stream，由 Relay 转发 Kafka；
// 未配置 Kafka 时整条事件链路关闭，Stream 没有读者，不再写入。
func eventPublisher(cfg config.AppConfig, rdb *rd.Client) payment.EventPublisher {
	if !cfg.KafkaEnabled() {
		return nil
	}
	return queue.NewStreamOutbox(rdb, cfg.PaymentEventStream)
}
