package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"order_payment/internal/model"

	"github.com/google/uuid"
)

// Store 持久化已结算的支付。
type Store interface {
	Create(ctx context.Context, p *model.Payment) error
}

// EventPublisher 支付结算后的事件出口（outbox）。
type EventPublisher interface {
	PublishSettled(ctx context.Context, p model.Payment) error
}

// Executor 执行一次支付尝试：校验 -> 判定结果 -> 生成交易号 -> 落库一次。
type Executor struct {
	store   Store
	policy  SuccessPolicy
	events  EventPublisher
	newTxID func() string
	logger  *slog.Logger

	// publishTimeout 事件发布的最长等待，超过后响应先返回。
	publishTimeout time.Duration
}

const defaultPublishTimeout = 200 * time.Millisecond

func NewExecutor(store Store, policy SuccessPolicy, events EventPublisher, logger *slog.Logger) *Executor {
	return &Executor{
		store:   store,
		policy:  policy,
		events:  events,
		newTxID: uuid.NewString,
		logger:  logger,

		publishTimeout: defaultPublishTimeout,
	}
}

func (e *Executor) DoPayment(ctx context.Context, p model.Payment) (*model.Payment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e.logger.Info("processing payment", "order_id", p.OrderID, "amount", p.Amount)

	// 调用方传入的 id/状态/交易号一律忽略，由本服务分配。
	p.ID = 0
	p.Status = model.PaymentPending
	p.TransactionID = ""

	status := model.PaymentFailed
	if e.policy.Succeed() {
		status = model.PaymentSuccess
	}
	if err := p.Settle(status, e.newTxID()); err != nil {
		return nil, err
	}
	if err := e.store.Create(ctx, &p); err != nil {
		return nil, fmt.Errorf("persist payment for order %s: %w", p.OrderID, err)
	}
	e.logger.Info("payment processed",
		"payment_id", p.ID,
		"order_id", p.OrderID,
		"txid", p.TransactionID,
		"status", string(p.Status),
	)

	if e.events != nil {
		e.publish(ctx, p)
	}
	return &p, nil
}

// publish 支付已落库，事件只是旁路：脱离请求取消、最多等 publishTimeout，
// Redis 卡住也不能拖慢支付响应。失败只记日志。
func (e *Executor) publish(ctx context.Context, p model.Payment) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.publishTimeout)
	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- e.events.PublishSettled(pctx, p)
	}()

	t := time.NewTimer(e.publishTimeout)
	defer t.Stop()
	select {
	case err := <-done:
		if err != nil {
			e.logger.Error("publish payment event failed", "payment_id", p.ID, "err", err)
		}
	case <-t.C:
		e.logger.Warn("publish payment event timed out", "payment_id", p.ID, "timeout", e.publishTimeout)
	}
}
