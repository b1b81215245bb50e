package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"order_payment/internal/model"

	rd "github.com/redis/go-redis/v9"
)

// Publisher Kafka 出口，Relay 只依赖这个接口。
type Publisher interface {
	Publish(ctx context.Context, ev PaymentEvent) error
}

// Relay 将 Redis Stream 事件异步转发到 Kafka。
// 语义：发布 Kafka 成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb       *rd.Client
	publisher Publisher
	logger    *slog.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, publisher Publisher, stream, group, consumer string, logger *slog.Logger) *Relay {
	return &Relay{
		rdb:       rdb,
		publisher: publisher,
		logger:    logger,
		stream:    stream,
		group:     group,
		consumer:  consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.logger.Error("relay ensure group", "err", err)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		// 先处理当前消费者历史 pending，避免遗留消息长期堆积。
		msgs, err := r.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Warn("relay read pending", "err", err)
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				r.logger.Warn("relay read new", "err", err)
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				// 发布失败不 ACK，消息会继续保留用于重试。
				r.logger.Warn("relay process message", "id", xm.ID, "err", err)
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	ev, err := parsePaymentEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		r.logger.Warn("relay drop malformed event", "id", xm.ID, "err", err)
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, ev); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parsePaymentEvent(values map[string]interface{}) (PaymentEvent, error) {
	fields := map[string]string{}
	for _, k := range []string{"event_id", "type", "payment_id", "order_id", "txid", "status", "amount", "occurred_at"} {
		v, err := getStreamString(values, k)
		if err != nil {
			return PaymentEvent{}, err
		}
		fields[k] = v
	}

	paymentID, err := strconv.ParseUint(fields["payment_id"], 10, 64)
	if err != nil {
		return PaymentEvent{}, fmt.Errorf("invalid payment_id %q", fields["payment_id"])
	}
	amount, err := strconv.ParseFloat(fields["amount"], 64)
	if err != nil {
		return PaymentEvent{}, fmt.Errorf("invalid amount %q", fields["amount"])
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, fields["occurred_at"])
	if err != nil {
		return PaymentEvent{}, fmt.Errorf("invalid occurred_at %q", fields["occurred_at"])
	}

	ev := PaymentEvent{
		EventID:       fields["event_id"],
		Type:          fields["type"],
		PaymentID:     uint(paymentID),
		OrderID:       fields["order_id"],
		TransactionID: fields["txid"],
		Status:        model.PaymentStatus(fields["status"]),
		Amount:        amount,
		OccurredAt:    occurredAt,
	}
	if err := ev.Validate(); err != nil {
		return PaymentEvent{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
