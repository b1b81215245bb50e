// Package discovery 把逻辑服务名解析为存活实例。
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

var ErrNoInstances = errors.New("no live instances")

// Instance 一个可调用的服务实例。
type Instance struct {
	Service string `json:"service"`
	URL     string `json:"url"`
}

// Resolver 返回零个或多个存活实例。
type Resolver interface {
	Instances(ctx context.Context, service string) ([]Instance, error)
}

// StaticResolver 使用配置的固定地址；未配置的服务交给 next。
type StaticResolver struct {
	urls map[string][]string
	next Resolver
}

func NewStaticResolver(next Resolver) *StaticResolver {
	return &StaticResolver{urls: make(map[string][]string), next: next}
}

// Set 必须在开始解析前调用。
func (s *StaticResolver) Set(service string, urls ...string) *StaticResolver {
	clean := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) > 0 {
		s.urls[service] = clean
	}
	return s
}

func (s *StaticResolver) Instances(ctx context.Context, service string) ([]Instance, error) {
	urls, ok := s.urls[service]
	if !ok {
		if s.next == nil {
			return nil, nil
		}
		return s.next.Instances(ctx, service)
	}
	out := make([]Instance, 0, len(urls))
	for _, u := range urls {
		out = append(out, Instance{Service: service, URL: u})
	}
	return out, nil
}

// RoundRobin 在存活实例间轮询，进程内共享一个游标。
type RoundRobin struct {
	resolver Resolver
	next     atomic.Uint64
}

func NewRoundRobin(r Resolver) *RoundRobin {
	return &RoundRobin{resolver: r}
}

func (b *RoundRobin) Pick(ctx context.Context, service string) (Instance, error) {
	list, err := b.resolver.Instances(ctx, service)
	if err != nil {
		return Instance{}, fmt.Errorf("resolve %s: %w", service, err)
	}
	if len(list) == 0 {
		return Instance{}, fmt.Errorf("resolve %s: %w", service, ErrNoInstances)
	}
	n := b.next.Add(1) - 1
	return list[n%uint64(len(list))], nil
}
