package resilience

import (
	"log/slog"
	"time"

	"order_payment/pkg/metrics"

	"github.com/sony/gobreaker/v2"
)

// State 熔断器状态，进程内按下游依赖共享。
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	}
	return "UNKNOWN"
}

// BreakerSettings 熔断参数。
// 连续失败达到 ConsecutiveFailures，或窗口内请求数 >= MinRequests 且失败率 >= FailureRatio 时跳闸；
// Cooldown 后进入半开，最多放行 HalfOpenProbes 个探测请求。
// 半开状态下需要连续 HalfOpenProbes 次成功才回到 CLOSED，任意一次失败立即回到 OPEN。
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
	Window              time.Duration
	Cooldown            time.Duration
	HalfOpenProbes      uint32

	// IsSuccessful 为 nil 时仅 err == nil 算成功。
	IsSuccessful func(error) bool
}

// Breaker 是对 gobreaker 的薄封装：状态迁移由 gobreaker 内部串行化，
// 并发调用方看到的始终是一致的 CLOSED / OPEN / HALF_OPEN。
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

func NewBreaker[T any](s BreakerSettings, m *metrics.BreakerMetrics, logger *slog.Logger) *Breaker[T] {
	st := gobreaker.Settings{
		Name:         s.Name,
		MaxRequests:  s.HalfOpenProbes,
		Interval:     s.Window,
		Timeout:      s.Cooldown,
		IsSuccessful: s.IsSuccessful,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if s.ConsecutiveFailures > 0 && c.ConsecutiveFailures >= s.ConsecutiveFailures {
				return true
			}
			if s.MinRequests == 0 || c.Requests < s.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker state changed", "dependency", name, "from", fromLib(from).String(), "to", fromLib(to).String())
			if m != nil {
				m.State.WithLabelValues(name).Set(float64(fromLib(to)))
			}
		},
	}
	if m != nil {
		m.State.WithLabelValues(s.Name).Set(float64(StateClosed))
	}
	return &Breaker[T]{name: s.Name, cb: gobreaker.NewCircuitBreaker[T](st)}
}

func (b *Breaker[T]) Name() string { return b.name }

func (b *Breaker[T]) State() State { return fromLib(b.cb.State()) }

// Execute 在熔断保护下执行 fn；OPEN 或半开探测名额用尽时直接返回错误，不调用 fn。
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	return b.cb.Execute(fn)
}

func fromLib(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	}
	return StateClosed
}
