package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRegisterAndLiveMembers(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, RegisterMember(ctx, rdb, "payment-service", "http://a:8082", 30*time.Second, now))
	require.NoError(t, RegisterMember(ctx, rdb, "payment-service", "http://b:8082", 5*time.Second, now))

	live, err := LiveMembers(ctx, rdb, "payment-service", now.Add(time.Second))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"http://a:8082", "http://b:8082"}, live)

	// b 未续约，过期后被剔除
	live, err = LiveMembers(ctx, rdb, "payment-service", now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a:8082"}, live)

	assert.Greater(t, mr.TTL(RegistryKey("payment-service")), time.Duration(0))
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	now := time.Now()

	require.NoError(t, RegisterMember(ctx, rdb, "order-service", "http://a:8081", time.Minute, now))
	require.NoError(t, RemoveMember(ctx, rdb, "order-service", "http://a:8081"))

	live, err := LiveMembers(ctx, rdb, "order-service", now)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "order_payment:registry:payment-service", RegistryKey("payment-service"))
	assert.Equal(t, "rate_limit:book_order:customer:c-1", RateLimitUserKey("c-1"))
	assert.Equal(t, "rate_limit:book_order:ip:10.0.0.1", RateLimitIPKey("10.0.0.1"))
}
