package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"order_payment/internal/logging"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedResolver struct {
	list []Instance
	err  error
}

func (f fixedResolver) Instances(context.Context, string) ([]Instance, error) {
	return f.list, f.err
}

func TestStaticResolver(t *testing.T) {
	next := fixedResolver{list: []Instance{{Service: "order-service", URL: "http://dyn:8081"}}}
	r := NewStaticResolver(next).Set("payment-service", " http://a:8082/ ", "", "http://b:8082")

	list, err := r.Instances(context.Background(), "payment-service")
	require.NoError(t, err)
	assert.Equal(t, []Instance{
		{Service: "payment-service", URL: "http://a:8082"},
		{Service: "payment-service", URL: "http://b:8082"},
	}, list)

	// 未配置静态地址的服务交给 next
	list, err = r.Instances(context.Background(), "order-service")
	require.NoError(t, err)
	assert.Equal(t, "http://dyn:8081", list[0].URL)
}

func TestStaticResolverEmptySetFallsThrough(t *testing.T) {
	r := NewStaticResolver(nil).Set("payment-service")
	list, err := r.Instances(context.Background(), "payment-service")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRoundRobin(t *testing.T) {
	rr := NewRoundRobin(NewStaticResolver(nil).Set("p", "http://a", "http://b"))
	var got []string
	for i := 0; i < 4; i++ {
		inst, err := rr.Pick(context.Background(), "p")
		require.NoError(t, err)
		got = append(got, inst.URL)
	}
	assert.Equal(t, []string{"http://a", "http://b", "http://a", "http://b"}, got)
}

func TestRoundRobinErrors(t *testing.T) {
	_, err := NewRoundRobin(NewStaticResolver(nil)).Pick(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoInstances)

	boom := errors.New("redis down")
	_, err = NewRoundRobin(fixedResolver{err: boom}).Pick(context.Background(), "p")
	assert.ErrorIs(t, err, boom)
}

func newRegistry(t *testing.T, ttl time.Duration) *RedisRegistry {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRegistry(rdb, ttl)
}

func TestRedisRegistryExpiry(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, 10*time.Second)
	now := time.UnixMilli(1_700_000_000_000)
	reg.now = func() time.Time { return now }

	inst := Instance{Service: "payment-service", URL: "http://a:8082"}
	require.NoError(t, reg.Register(ctx, inst))

	list, err := reg.Instances(ctx, "payment-service")
	require.NoError(t, err)
	assert.Equal(t, []Instance{inst}, list)

	now = now.Add(11 * time.Second)
	list, err = reg.Instances(ctx, "payment-service")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHeartbeatRegistersAndDeregisters(t *testing.T) {
	reg := newRegistry(t, time.Minute)
	inst := Instance{Service: "order-service", URL: "http://a:8081"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Heartbeat(ctx, reg, inst, 10*time.Millisecond, logging.Discard())
		close(done)
	}()

	require.Eventually(t, func() bool {
		list, err := reg.Instances(context.Background(), "order-service")
		return err == nil && len(list) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	list, err := reg.Instances(context.Background(), "order-service")
	require.NoError(t, err)
	assert.Empty(t, list)
}
