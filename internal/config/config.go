package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	OrderService   = "order-service"
	PaymentService = "payment-service"
	GatewayService = "gateway"
)

// AppConfig 聚合运行时配置，环境变量优先，可选 CONFIG_FILE 指定配置文件。
type AppConfig struct {
	ServiceName  string
	HTTPAddr     string
	AdvertiseURL string

	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// 服务注册：实例心跳 TTL 与续约间隔
	RegistryTTL       time.Duration
	HeartbeatInterval time.Duration

	// Kafka 集群地址（逗号分隔，为空则关闭消息链路）
	KafkaBrokers      []string
	PaymentEventTopic string
	PaymentEventGroup string

	// Redis Stream outbox（支付结算事件先入流，Relay 异步转 Kafka）
	PaymentEventStream         string
	PaymentEventStreamGroup    string
	PaymentEventStreamConsumer string

	// 下游逻辑服务名；配置了 STATIC_URLS 时跳过注册中心
	PaymentServiceName string
	PaymentStaticURLs  []string
	OrderServiceName   string
	OrderStaticURLs    []string

	// 熔断与超时
	PaymentTimeout             time.Duration
	BreakerConsecutiveFailures int
	BreakerFailureRatio        float64
	BreakerMinRequests         int
	BreakerWindow              time.Duration
	BreakerCooldown            time.Duration
	BreakerHalfOpenProbes      int

	PaymentSuccessRate float64

	BookRateLimit  int
	BookRateWindow time.Duration
}

// Load 读取并校验 service 的配置，缺失时使用默认值。
func Load(service string) (AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v, service)

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := AppConfig{
		ServiceName:  v.GetString("service_name"),
		HTTPAddr:     v.GetString("http_addr"),
		AdvertiseURL: v.GetString("advertise_url"),

		DBDriver: v.GetString("db_driver"),
		DBDSN:    v.GetString("db_dsn"),

		RedisAddr: v.GetString("redis_addr"),
		RedisDB:   v.GetInt("redis_db"),

		RegistryTTL:       v.GetDuration("registry_ttl"),
		HeartbeatInterval: v.GetDuration("heartbeat_interval"),

		KafkaBrokers:      splitCSV(v.GetString("kafka_brokers")),
		PaymentEventTopic: v.GetString("payment_event_topic"),
		PaymentEventGroup: v.GetString("payment_event_group"),

		PaymentEventStream:         v.GetString("payment_event_stream"),
		PaymentEventStreamGroup:    v.GetString("payment_event_stream_group"),
		PaymentEventStreamConsumer: v.GetString("payment_event_stream_consumer"),

		PaymentServiceName: v.GetString("payment_service_name"),
		PaymentStaticURLs:  splitCSV(v.GetString("payment_static_urls")),
		OrderServiceName:   v.GetString("order_service_name"),
		OrderStaticURLs:    splitCSV(v.GetString("order_static_urls")),

		PaymentTimeout:             v.GetDuration("payment_timeout"),
		BreakerConsecutiveFailures: v.GetInt("breaker_consecutive_failures"),
		BreakerFailureRatio:        v.GetFloat64("breaker_failure_ratio"),
		BreakerMinRequests:         v.GetInt("breaker_min_requests"),
		BreakerWindow:              v.GetDuration("breaker_window"),
		BreakerCooldown:            v.GetDuration("breaker_cooldown"),
		BreakerHalfOpenProbes:      v.GetInt("breaker_half_open_probes"),

		PaymentSuccessRate: v.GetFloat64("payment_success_rate"),

		BookRateLimit:  v.GetInt("book_rate_limit"),
		BookRateWindow: v.GetDuration("book_rate_window"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// KafkaEnabled KAFKA_BROKERS 为空时整条事件链路关闭。
func (c AppConfig) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func setDefaults(v *viper.Viper, service string) {
	addr, dsn := ":8080", ""
	switch service {
	case OrderService:
		addr, dsn = ":8081", "orders.db"
	case PaymentService:
		addr, dsn = ":8082", "payments.db"
	}

	v.SetDefault("service_name", service)
	v.SetDefault("http_addr", addr)
	v.SetDefault("advertise_url", "http://localhost"+addr)
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", dsn)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("registry_ttl", 30*time.Second)
	v.SetDefault("heartbeat_interval", 10*time.Second)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("payment_event_topic", "payment-events")
	v.SetDefault("payment_event_group", "order-service-payment-events")
	v.SetDefault("payment_event_stream", "payment:events")
	v.SetDefault("payment_event_stream_group", "payment-relay-group")
	v.SetDefault("payment_event_stream_consumer", "payment-relay-1")
	v.SetDefault("payment_service_name", PaymentService)
	v.SetDefault("payment_static_urls", "")
	v.SetDefault("order_service_name", OrderService)
	v.SetDefault("order_static_urls", "")
	v.SetDefault("payment_timeout", 3*time.Second)
	v.SetDefault("breaker_consecutive_failures", 5)
	v.SetDefault("breaker_failure_ratio", 0.5)
	v.SetDefault("breaker_min_requests", 10)
	v.SetDefault("breaker_window", 10*time.Second)
	v.SetDefault("breaker_cooldown", 5*time.Second)
	v.SetDefault("breaker_half_open_probes", 1)
	v.SetDefault("payment_success_rate", 0.8)
	v.SetDefault("book_rate_limit", 1000)
	v.SetDefault("book_rate_window", time.Second)
}

func (c AppConfig) validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME must not be empty")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.RegistryTTL <= 0 {
		return fmt.Errorf("REGISTRY_TTL must be > 0")
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval >= c.RegistryTTL {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be > 0 and < REGISTRY_TTL")
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT must be > 0")
	}
	if c.BreakerConsecutiveFailures <= 0 {
		return fmt.Errorf("BREAKER_CONSECUTIVE_FAILURES must be > 0")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.BreakerMinRequests <= 0 {
		return fmt.Errorf("BREAKER_MIN_REQUESTS must be > 0")
	}
	if c.BreakerWindow <= 0 {
		return fmt.Errorf("BREAKER_WINDOW must be > 0")
	}
	if c.BreakerCooldown <= 0 {
		return fmt.Errorf("BREAKER_COOLDOWN must be > 0")
	}
	if c.BreakerHalfOpenProbes <= 0 {
		return fmt.Errorf("BREAKER_HALF_OPEN_PROBES must be > 0")
	}
	if c.PaymentSuccessRate < 0 || c.PaymentSuccessRate > 1 {
		return fmt.Errorf("PAYMENT_SUCCESS_RATE must be in [0, 1]")
	}
	if c.BookRateLimit <= 0 {
		return fmt.Errorf("BOOK_RATE_LIMIT must be > 0")
	}
	if c.BookRateWindow < time.Second {
		return fmt.Errorf("BOOK_RATE_WINDOW must be >= 1s")
	}
	if c.KafkaEnabled() {
		if c.PaymentEventTopic == "" {
			return fmt.Errorf("PAYMENT_EVENT_TOPIC must not be empty")
		}
		if c.PaymentEventGroup == "" {
			return fmt.Errorf("PAYMENT_EVENT_GROUP must not be empty")
		}
	}
	if c.PaymentEventStream == "" {
		return fmt.Errorf("PAYMENT_EVENT_STREAM must not be empty")
	}
	if c.PaymentEventStreamGroup == "" {
		return fmt.Errorf("PAYMENT_EVENT_STREAM_GROUP must not be empty")
	}
	if c.PaymentEventStreamConsumer == "" {
		return fmt.Errorf("PAYMENT_EVENT_STREAM_CONSUMER must not be empty")
	}
	return nil
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
