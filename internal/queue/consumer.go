package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"order_payment/internal/model"
	"order_payment/internal/store"

	"github.com/segmentio/kafka-go"
)

// OrderUpdater 订单状态迁移入口。
type OrderUpdater interface {
	UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error)
}

// Consumer 消费支付结算事件，推进订单生命周期：
// SUCCESS -> CONFIRMED；FAILED 不改状态（订单留在购物车里，仍为 PENDING）。
type Consumer struct {
	r      *kafka.Reader
	orders OrderUpdater
	logger *slog.Logger

	// 事件可能先于订单落库到达，按 retryDelay 最多重查 retries 次。
	retries    int
	retryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, orders OrderUpdater, logger *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		orders:     orders,
		logger:     logger,
		retries:    3,
		retryDelay: 500 * time.Millisecond,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		c.handle(ctx, m.Value)
		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Warn("consumer commit", "offset", m.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) {
	var ev PaymentEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		c.logger.Warn("consumer unmarshal", "err", err)
		return
	}
	if err := ev.Validate(); err != nil {
		c.logger.Warn("consumer drop invalid event", "err", err)
		return
	}
	if ev.Status != model.PaymentSuccess {
		c.logger.Info("payment not successful, order stays pending", "order_id", ev.OrderID, "txid", ev.TransactionID)
		return
	}

	for attempt := 0; ; attempt++ {
		_, err := c.orders.UpdateStatus(ctx, ev.OrderID, model.OrderConfirmed)
		switch {
		case err == nil:
			c.logger.Info("order confirmed", "order_id", ev.OrderID, "txid", ev.TransactionID)
			return
		case errors.Is(err, store.ErrInvalidTransition):
			// 幂等：重复消息或订单已被取消，直接跳过。
			c.logger.Info("order transition skipped", "order_id", ev.OrderID, "err", err)
			return
		case errors.Is(err, store.ErrNotFound) && attempt < c.retries:
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		default:
			c.logger.Warn("order confirm failed", "order_id", ev.OrderID, "err", err)
			return
		}
	}
}
