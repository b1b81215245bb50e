package queue

import (
	"context"
	"strconv"
	"time"

	"order_payment/internal/model"

	rd "github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen Stream 长度上限（近似裁剪），Relay 长时间停摆时保护 Redis 内存。
const DefaultStreamMaxLen = 100_000

// StreamOutbox 把支付事件追加到 Redis Stream，由 Relay 异步投递 Kafka。
type StreamOutbox struct {
	rdb    *rd.Client
	stream string
	maxLen int64
	now    func() time.Time
}

func NewStreamOutbox(rdb *rd.Client, stream string) *StreamOutbox {
	return &StreamOutbox{rdb: rdb, stream: stream, maxLen: DefaultStreamMaxLen, now: time.Now}
}

func (o *StreamOutbox) PublishSettled(ctx context.Context, p model.Payment) error {
	ev := NewPaymentSettled(p, o.now())
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":    ev.EventID,
			"type":        ev.Type,
			"payment_id":  strconv.FormatUint(uint64(ev.PaymentID), 10),
			"order_id":    ev.OrderID,
			"txid":        ev.TransactionID,
			"status":      string(ev.Status),
			"amount":      strconv.FormatFloat(ev.Amount, 'f', -1, 64),
			"occurred_at": ev.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
}
