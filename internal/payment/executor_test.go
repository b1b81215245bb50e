package payment

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"order_payment/internal/logging"
	"order_payment/internal/model"
	"order_payment/internal/queue"

	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	nextID uint
	saved  []model.Payment
	err    error
}

func (s *memStore) Create(_ context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.nextID++
	p.ID = s.nextID
	s.saved = append(s.saved, *p)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Payment
	err    error
}

func (r *recordingPublisher) PublishSettled(_ context.Context, p model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return r.err
}

func TestExecutorSuccess(t *testing.T) {
	store := &memStore{}
	events := &recordingPublisher{}
	e := NewExecutor(store, FixedPolicy(true), events, logging.Discard())
	e.newTxID = func() string { return "abc-123" }

	// 调用方传入的 id / 状态 / 交易号被忽略
	p, err := e.DoPayment(context.Background(), model.Payment{
		ID: 42, Status: model.PaymentSuccess, TransactionID: "forged",
		OrderID: "o-1", Amount: 10, PaymentMode: "CARD",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), p.ID)
	assert.Equal(t, model.PaymentSuccess, p.Status)
	assert.Equal(t, "abc-123", p.TransactionID)
	assert.Equal(t, "o-1", p.OrderID)
	assert.Equal(t, 10.0, p.Amount)

	require.Len(t, store.saved, 1)
	require.Len(t, events.events, 1)
	assert.Equal(t, "abc-123", events.events[0].TransactionID)
}

func TestExecutorFailedIsStillPersisted(t *testing.T) {
	store := &memStore{}
	e := NewExecutor(store, FixedPolicy(false), nil, logging.Discard())

	p, err := e.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.NotEmpty(t, p.TransactionID)
	assert.Len(t, store.saved, 1)
}

func TestExecutorValidationSkipsPersistence(t *testing.T) {
	store := &memStore{}
	e := NewExecutor(store, FixedPolicy(true), nil, logging.Discard())

	_, err := e.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 0})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, err = e.DoPayment(context.Background(), model.Payment{Amount: 5})
	assert.True(t, model.IsValidation(err))
	assert.Empty(t, store.saved)
}

func TestExecutorPersistenceError(t *testing.T) {
	e := NewExecutor(&memStore{err: errors.New("disk full")}, FixedPolicy(true), &recordingPublisher{}, logging.Discard())
	_, err := e.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 1})
	assert.ErrorContains(t, err, "disk full")
}

func TestExecutorPublishErrorDoesNotFail(t *testing.T) {
	e := NewExecutor(&memStore{}, FixedPolicy(true), &recordingPublisher{err: errors.New("redis down")}, logging.Discard())
	p, err := e.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSuccess, p.Status)
}

func TestExecutorTransactionIDsUnique(t *testing.T) {
	store := &memStore{}
	e := NewExecutor(store, NewSequencePolicy(true, false), nil, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range store.saved {
		assert.False(t, seen[p.TransactionID], "duplicate txid %s", p.TransactionID)
		seen[p.TransactionID] = true
	}
	assert.Len(t, seen, 50)
}

func TestSequencePolicy(t *testing.T) {
	s := NewSequencePolicy(true, false)
	assert.True(t, s.Succeed())
	assert.False(t, s.Succeed())
	assert.False(t, s.Succeed())
	assert.False(t, NewSequencePolicy().Succeed())
}

func TestProbabilityPolicyBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, ProbabilityPolicy{Rate: 1}.Succeed())
		assert.False(t, ProbabilityPolicy{Rate: 0}.Succeed())
	}
}

// stalledRedis 接受连接但从不应答，模拟卡住的 Redis。
func stalledRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestExecutorStalledOutboxDoesNotDelayResponse(t *testing.T) {
	rdb := rd.NewClient(&rd.Options{Addr: stalledRedis(t)})
	defer rdb.Close()

	store := &memStore{}
	e := NewExecutor(store, FixedPolicy(true), queue.NewStreamOutbox(rdb, "payment:events"), logging.Discard())

	start := time.Now()
	p, err := e.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 10})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.PaymentSuccess, p.Status)
	assert.Len(t, store.saved, 1)
}

type blockingPublisher struct{ sawCancel chan bool }

func (b blockingPublisher) PublishSettled(ctx context.Context, _ model.Payment) error {
	<-ctx.Done()
	b.sawCancel <- errors.Is(ctx.Err(), context.Canceled)
	return ctx.Err()
}

func TestExecutorPublishDetachedFromCaller(t *testing.T) {
	pub := blockingPublisher{sawCancel: make(chan bool, 1)}
	e := NewExecutor(&memStore{}, FixedPolicy(true), pub, logging.Discard())
	e.publishTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.DoPayment(ctx, model.Payment{OrderID: "o-1", Amount: 10})
	require.NoError(t, err)

	// 发布只会因自身超时结束，不受调用方取消影响
	select {
	case canceled := <-pub.sawCancel:
		assert.False(t, canceled)
	case <-time.After(time.Second):
		t.Fatal("publish never finished")
	}
}
