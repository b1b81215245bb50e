package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderpay"

// ServerMetrics HTTP 请求计数与耗时。
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// BreakerMetrics 熔断器状态与支付调用结果。
type BreakerMetrics struct {
	State    *prometheus.GaugeVec
	Outcomes *prometheus.CounterVec
}

func NewBreakerMetrics(reg prometheus.Registerer, service string) *BreakerMetrics {
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "breaker_state",
		Help:      "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open).",
	}, []string{"dependency"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "dependency_calls_total",
		Help:      "Outcomes of calls through the resilience layer.",
	}, []string{"dependency", "outcome"})

	reg.MustRegister(state, outcomes)
	return &BreakerMetrics{State: state, Outcomes: outcomes}
}

// BookingMetrics 下单结果计数（success / failure）。
type BookingMetrics struct {
	Outcomes *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer, service string) *BookingMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "bookings_total",
		Help:      "Order bookings by payment outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &BookingMetrics{Outcomes: outcomes}
}

// HandlerFor 暴露指定 registry，测试里避免污染全局注册表。
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
