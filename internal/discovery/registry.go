package discovery

import (
	"context"
	"log/slog"
	"time"

	rediskey "order_payment/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// RedisRegistry 基于 Redis ZSET 的实例注册表，实例靠心跳续约。
type RedisRegistry struct {
	rdb *rd.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisRegistry(rdb *rd.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, ttl: ttl, now: time.Now}
}

func (r *RedisRegistry) Register(ctx context.Context, inst Instance) error {
	return rediskey.RegisterMember(ctx, r.rdb, inst.Service, inst.URL, r.ttl, r.now())
}

func (r *RedisRegistry) Deregister(ctx context.Context, inst Instance) error {
	return rediskey.RemoveMember(ctx, r.rdb, inst.Service, inst.URL)
}

func (r *RedisRegistry) Instances(ctx context.Context, service string) ([]Instance, error) {
	members, err := rediskey.LiveMembers(ctx, r.rdb, service, r.now())
	if err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(members))
	for _, m := range members {
		out = append(out, Instance{Service: service, URL: m})
	}
	return out, nil
}

// Heartbeat 立即注册并按 every 续约，ctx 结束后主动下线。
func Heartbeat(ctx context.Context, reg *RedisRegistry, inst Instance, every time.Duration, logger *slog.Logger) {
	if err := reg.Register(ctx, inst); err != nil {
		logger.Warn("registry register failed", "instance", inst.URL, "err", err)
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := reg.Deregister(dctx, inst); err != nil {
				logger.Warn("registry deregister failed", "instance", inst.URL, "err", err)
			}
			cancel()
			return
		case <-t.C:
			if err := reg.Register(ctx, inst); err != nil && ctx.Err() == nil {
				logger.Warn("registry heartbeat failed", "instance", inst.URL, "err", err)
			}
		}
	}
}
