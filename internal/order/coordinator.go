// Package order 协调一次下单：调用远程支付，无条件保存订单，合并结果。
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"order_payment/internal/model"
	"order_payment/internal/resilience"
	"order_payment/pkg/metrics"

	"github.com/google/uuid"
)

// PaymentCaller 受熔断保护的支付调用，永远返回 Outcome 而不是错误。
type PaymentCaller interface {
	CallPayment(ctx context.Context, draft model.Payment) resilience.Outcome
}

// Store 订单写入口。
type Store interface {
	Create(ctx context.Context, o *model.Order) error
}

// PersistenceError 订单写入失败，本次下单中止。
type PersistenceError struct {
	OrderID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist order %s: %v", e.OrderID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Coordinator 不持有任何一张表，只在下单瞬间维护订单与支付之间的关联。
type Coordinator struct {
	payments PaymentCaller
	orders   Store
	metrics  *metrics.BookingMetrics
	logger   *slog.Logger
	newID    func() string
}

func NewCoordinator(payments PaymentCaller, orders Store, m *metrics.BookingMetrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		payments: payments,
		orders:   orders,
		metrics:  m,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// BookOrder 下单主流程：
// 1. 校验订单草稿，非法输入在任何网络调用前直接返回 ValidationError
// 2. 分配订单 id，并据此填充支付腿的 order_id 与 amount（= 单价）
// 3. 经 resilience 层调用远程支付（至多一次）
// 4. 无论支付结果如何都保存订单（save-always）
// 5. 合并响应：仅 SUCCESS 视为成功，其余（FAILED / 降级）统一走失败分支
//
// 支付侧的超时、熔断、不可用都不会以 error 返回；只有校验失败、订单写入失败
// 与调用方取消会返回 error。
func (c *Coordinator) BookOrder(ctx context.Context, order model.Order, draft model.Payment) (*model.TransactionResponse, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	order.ID = c.newID()
	order.Status = model.OrderPending
	order.CreatedAt, order.UpdatedAt = time.Time{}, time.Time{}
	order.TotalValue = order.Total()

	draft.OrderID = order.ID
	draft.Amount = order.Price
	draft.Status = model.PaymentPending

	start := time.Now()
	outcome, err := c.callPayment(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("book order %s: %w", order.ID, err)
	}

	if err := c.orders.Create(ctx, &order); err != nil {
		c.logger.Error("order persist failed", "order_id", order.ID, "err", err)
		return nil, &PersistenceError{OrderID: order.ID, Err: err}
	}

	resp := compose(order, outcome)
	c.observe(order, outcome, resp, time.Since(start))
	return resp, nil
}

// callPayment 支付调用跑在脱离取消的 ctx 上（超时由 resilience 层约束）。
// 调用方取消时不等待结果，迟到的结果被丢弃，远程支付仍可完整结束。
func (c *Coordinator) callPayment(ctx context.Context, draft model.Payment) (resilience.Outcome, error) {
	ch := make(chan resilience.Outcome, 1)
	go func() {
		ch <- c.payments.CallPayment(context.WithoutCancel(ctx), draft)
	}()

	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		go func() {
			late := <-ch
			c.logger.Warn("payment result discarded after caller cancel",
				"order_id", draft.OrderID,
				"settled", late.Settled(),
			)
		}()
		return resilience.Outcome{}, ctx.Err()
	}
}

func compose(order model.Order, out resilience.Outcome) *model.TransactionResponse {
	if out.Settled() && out.Payment.Status == model.PaymentSuccess {
		return &model.TransactionResponse{
			Order:         order,
			Amount:        out.Payment.Amount,
			TransactionID: out.Payment.TransactionID,
			Message:       model.MessagePaymentSuccess,
		}
	}
	return &model.TransactionResponse{
		Order:         order,
		Amount:        0,
		TransactionID: model.TransactionFailed,
		Message:       model.MessagePaymentFailure,
	}
}

func (c *Coordinator) observe(order model.Order, out resilience.Outcome, resp *model.TransactionResponse, took time.Duration) {
	result := "failure"
	if resp.TransactionID != model.TransactionFailed {
		result = "success"
	}
	if c.metrics != nil {
		c.metrics.Outcomes.WithLabelValues(result).Inc()
	}

	attrs := []any{
		"order_id", order.ID,
		"step", "book_order",
		"status", result,
		"duration_ms", took.Milliseconds(),
	}
	switch {
	case out.Settled():
		attrs = append(attrs, "payment_id", out.Payment.ID, "txid", out.Payment.TransactionID, "payment_status", string(out.Payment.Status))
	case out.Reason != nil:
		// 响应里“拒付”与“支付服务不可用”合并为同一文案，日志里区分开。
		attrs = append(attrs, "payment_status", "UNAVAILABLE", "reason", out.Reason.Error())
	}
	c.logger.Info("order booked", attrs...)
}
