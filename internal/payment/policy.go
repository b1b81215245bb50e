package payment

import (
	"math/rand"
	"sync"
)

// SuccessPolicy 决定一次支付尝试是否成功，可注入以便测试固定结果。
type SuccessPolicy interface {
	Succeed() bool
}

// ProbabilityPolicy 以 Rate 的概率成功（参考行为 0.8）。
type ProbabilityPolicy struct {
	Rate float64
}

func (p ProbabilityPolicy) Succeed() bool {
	return rand.Float64() < p.Rate
}

// FixedPolicy 总是返回同一结果。
type FixedPolicy bool

func (f FixedPolicy) Succeed() bool { return bool(f) }

// SequencePolicy 依次返回给定结果，用完后重复最后一个。
type SequencePolicy struct {
	mu      sync.Mutex
	results []bool
	i       int
}

func NewSequencePolicy(results ...bool) *SequencePolicy {
	return &SequencePolicy{results: results}
}

func (s *SequencePolicy) Succeed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return false
	}
	if s.i >= len(s.results) {
		return s.results[len(s.results)-1]
	}
	r := s.results[s.i]
	s.i++
	return r
}
