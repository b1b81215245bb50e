package main

import (
	"testing"

	"order_payment/internal/config"
	"order_payment/internal/queue"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisherDisabledWithoutKafka(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.AppConfig{PaymentEventStream: "payment:events"}
	// 必须是 nil 接口而不是 typed nil，否则 Executor 的 nil 判断失效
	assert.True(t, eventPublisher(cfg, rdb) == nil)

	cfg.KafkaBrokers = []string{"localhost:9092"}
	pub := eventPublisher(cfg, rdb)
	require.NotNil(t, pub)
	assert.IsType(t, &queue.StreamOutbox{}, pub)

}
