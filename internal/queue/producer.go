package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer 把 payment.settled 事件写入 Kafka，只由 Relay 调用。
type Producer struct {
	w *kafka.Writer
}

// NewProducer 以 order_id 哈希分区：同一订单的结算事件落在同一分区，
// order-service 的 Consumer 按写入顺序看到它们。
// RequireAll 保证 Relay ACK Stream 之前事件已被全部 ISR 确认。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条结算事件；event_id 与类型放在 header 里，消费端无需解包即可去重或过滤。
func (p *Producer) Publish(ctx context.Context, ev PaymentEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventID, err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: b,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	})
}
