package memstore

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"smartcheck-api/pkg/metrics"
)

// rateRecord 单个客户端的窗口计数
type rateRecord struct {
	count         int
	windowResetAt time.Time
}

// RateLimiter 固定窗口限流器：窗口内共享一个计数器，
// 到达 windowResetAt 后整体重置（非滑动窗口）。
type RateLimiter struct {
	mu      sync.Mutex
	records map[string]*rateRecord

	// now 可在测试中替换以控制时钟
	now func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		records: make(map[string]*rateRecord),
		now:     time.Now,
	}
}

// Allow 检查是否允许请求。窗口内计数达到 limit 后拒绝；
// 窗口过期后首个请求重置为 {count:1}。
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	_, span := tracer.Start(ctx, "ratelimit.Allow")
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.After(rec.windowResetAt) {
		l.records[key] = &rateRecord{count: 1, windowResetAt: now.Add(window)}
		span.SetAttributes(attribute.Bool("ratelimit.allowed", true))
		return true
	}

	if rec.count >= limit {
		span.SetAttributes(attribute.Bool("ratelimit.allowed", false))
		metrics.RateLimitRejectedTotal.Inc()
		return false
	}

	rec.count++
	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", true),
		attribute.Int("ratelimit.count", rec.count),
	)
	return true
}

// Sweep 删除窗口已过期的记录，把内存占用限制在近期活跃客户端数内
func (l *RateLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, rec := range l.records {
		if now.After(rec.windowResetAt) {
			delete(l.records, k)
			removed++
		}
	}
	return removed
}

// Name 实现 Sweepable
func (l *RateLimiter) Name() string {
	return "ratelimit"
}
