package redis

import "fmt"

// RegistryKey 某逻辑服务的实例集合（ZSET，score 为过期时间毫秒）。
func RegistryKey(service string) string {
	return fmt.Sprintf("order_payment:registry:%s", service)
}

// RateLimitUserKey 下单接口按客户限流。
func RateLimitUserKey(customerID string) string {
	return fmt.Sprintf("rate_limit:book_order:customer:%s", customerID)
}

// RateLimitIPKey 无客户标识时按 IP 降级限流。
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate_limit:book_order:ip:%s", ip)
}
