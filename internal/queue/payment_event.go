package queue

import (
	"fmt"
	"time"

	"order_payment/internal/model"

	"github.com/google/uuid"
)

const EventPaymentSettled = "payment.settled"

// PaymentEvent 支付结算事件：payment-service 写入 Stream，经 Relay 转发到 Kafka。
type PaymentEvent struct {
	EventID       string              `json:"event_id"`
	Type          string              `json:"type"`
	PaymentID     uint                `json:"payment_id"`
	OrderID       string              `json:"order_id"`
	TransactionID string              `json:"txid"`
	Status        model.PaymentStatus `json:"status"`
	Amount        float64             `json:"amount"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

func NewPaymentSettled(p model.Payment, now time.Time) PaymentEvent {
	return PaymentEvent{
		EventID:       uuid.NewString(),
		Type:          EventPaymentSettled,
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		Amount:        p.Amount,
		OccurredAt:    now.UTC(),
	}
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e PaymentEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.Type != EventPaymentSettled {
		return fmt.Errorf("unsupported event type %q", e.Type)
	}
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if e.TransactionID == "" {
		return fmt.Errorf("txid is required")
	}
	if !e.Status.Terminal() {
		return fmt.Errorf("status must be terminal, got %q", e.Status)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("amount must be > 0")
	}
	return nil
}
