package github

import (
	"time"

	"github.com/google/go-github/v53/github"
)

const (
	// LowWaterMark 剩余次数低于该值且未到重置时间时，先等待重置
	LowWaterMark = 20

	// ResetMargin 等待重置时额外多等的时间
	ResetMargin = 10 * time.Second

	// initialRemaining 第一次请求前假设的剩余次数 (认证用户每小时 5000 次)
	initialRemaining = 5000
)

// RateLimitState 记录最近一次响应头里的 X-RateLimit-Remaining / X-RateLimit-Reset
type RateLimitState struct {
	remaining int
	resetAt   time.Time
}

func newRateLimitState() *RateLimitState {
	return &RateLimitState{remaining: initialRemaining}
}

// Update 每次收到响应都无条件刷新；响应头缺失时两者都归零
func (s *RateLimitState) Update(rate github.Rate) {
	s.remaining = rate.Remaining
	s.resetAt = rate.Reset.Time
}

// Remaining 返回剩余调用次数
func (s *RateLimitState) Remaining() int {
	return s.remaining
}

// ResetAt 返回配额重置时间
func (s *RateLimitState) ResetAt() time.Time {
	return s.resetAt
}

// ProactiveWait 返回发送下一个请求前需要等待的时长
func (s *RateLimitState) ProactiveWait(now time.Time) (time.Duration, bool) {
	if s.remaining >= LowWaterMark || !now.Before(s.resetAt) {
		return 0, false
	}
	return s.resetAt.Sub(now) + ResetMargin, true
}

// ResetWait 返回被限流后需要等待的时长，至少 ResetMargin
func (s *RateLimitState) ResetWait(now time.Time) time.Duration {
	wait := s.resetAt.Sub(now) + ResetMargin
	if wait < ResetMargin {
		return ResetMargin
	}
	return wait
}
