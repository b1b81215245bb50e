package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaLiveMembers 原子地剔除过期实例并返回存活实例。
// KEYS[1]=注册表key，ARGV[1]=当前时间毫秒
const luaLiveMembers = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now)
return redis.call('ZRANGEBYSCORE', key, '(' .. ARGV[1], '+inf')
`

// luaRegister 续约实例并刷新注册表整体 TTL。
// KEYS[1]=注册表key，ARGV[1]=过期时间毫秒，ARGV[2]=实例URL，ARGV[3]=key TTL 秒
const luaRegister = `
redis.call('ZADD', KEYS[1], tonumber(ARGV[1]), ARGV[2])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[3]))
return 1
`

// RegisterMember 注册或续约一个实例，ttl 到期前未续约即视为下线。
func RegisterMember(ctx context.Context, rdb rd.Scripter, service, member string, ttl time.Duration, now time.Time) error {
	expireAt := now.Add(ttl).UnixMilli()
	keyTTL := int64((3 * ttl) / time.Second)
	if keyTTL < 1 {
		keyTTL = 1
	}
	return rdb.Eval(ctx, luaRegister, []string{RegistryKey(service)}, expireAt, member, keyTTL).Err()
}

// RemoveMember 主动下线实例。
func RemoveMember(ctx context.Context, rdb rd.Cmdable, service, member string) error {
	return rdb.ZRem(ctx, RegistryKey(service), member).Err()
}

// LiveMembers 返回 now 时刻仍在有效期内的实例。
func LiveMembers(ctx context.Context, rdb rd.Scripter, service string, now time.Time) ([]string, error) {
	return rdb.Eval(ctx, luaLiveMembers, []string{RegistryKey(service)}, now.UnixMilli()).StringSlice()
}
