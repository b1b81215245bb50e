package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"order_payment/internal/fallback"
	"order_payment/internal/model"
	"order_payment/pkg/metrics"

	"github.com/sony/gobreaker/v2"
)

// ErrDependencyUnavailable 熔断打开、超时、连接失败或无可用实例。
// 只在本层内部出现，向上游一律降级为 Fallback。
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// PaymentClient 远程支付调用。
type PaymentClient interface {
	DoPayment(ctx context.Context, p model.Payment) (*model.Payment, error)
}

// Outcome 要么是已结算的支付，要么是降级结果。
type Outcome struct {
	Payment  *model.Payment
	Fallback *fallback.Response
	// Reason 仅在降级时非空，用于日志与指标。
	Reason error
}

func (o Outcome) Settled() bool { return o.Payment != nil }

// Layer 为支付调用加上超时、熔断与降级；不做重试，每次下单至多一次尝试。
type Layer struct {
	breaker *Breaker[*model.Payment]
	client  PaymentClient
	timeout time.Duration
	metrics *metrics.BreakerMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewLayer(b *Breaker[*model.Payment], client PaymentClient, timeout time.Duration, m *metrics.BreakerMetrics, logger *slog.Logger) *Layer {
	return &Layer{
		breaker: b,
		client:  client,
		timeout: timeout,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (l *Layer) BreakerState() State { return l.breaker.State() }

// CallPayment 调用远程支付。失败不会以 error 形式返回，而是 Outcome.Fallback。
func (l *Layer) CallPayment(ctx context.Context, draft model.Payment) Outcome {
	p, err := l.breaker.Execute(func() (*model.Payment, error) {
		return l.attempt(ctx, draft)
	})
	if err == nil {
		outcome := "settled_failed"
		if p.Status == model.PaymentSuccess {
			outcome = "settled_success"
		}
		l.record(outcome)
		return Outcome{Payment: p}
	}

	reason := fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		l.record("short_circuit")
	} else {
		l.record("fallback")
	}
	fb := fallback.Payment(l.now())
	l.logger.Warn("payment service fallback activated",
		"order_id", draft.OrderID,
		"breaker", l.breaker.State().String(),
		"reason", err.Error(),
	)
	return Outcome{Fallback: &fb, Reason: reason}
}

// attempt 单次调用，超时由本层强制，即使下游忽略 ctx 也会按时返回。
func (l *Layer) attempt(ctx context.Context, draft model.Payment) (*model.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		p   *model.Payment
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := l.client.DoPayment(ctx, draft)
		ch <- result{p: p, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.p == nil || !r.p.Status.Terminal() || r.p.TransactionID == "" {
			return nil, errors.New("payment response is not settled")
		}
		return r.p, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("payment call: %w", ctx.Err())
	}
}

func (l *Layer) record(outcome string) {
	if l.metrics != nil {
		l.metrics.Outcomes.WithLabelValues(l.breaker.Name(), outcome).Inc()
	}
}
