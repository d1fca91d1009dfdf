// Package memstore 提供进程内共享的可变状态：三个独立 TTL 键值存储、
// 固定窗口限流器与在途请求合并。所有状态均为进程生命周期内存态，
// 重启后从零重建。
package memstore

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"smartcheck-api/pkg/metrics"
)

var tracer = otel.Tracer("memstore")

// entry 单条缓存记录
type entry[T any] struct {
	data      T
	createdAt time.Time
}

// Store 带 TTL 的键值存储。读取时惰性过期（到期条目视为未命中，
// 即便尚未被清扫），写入无条件覆盖并重新打时间戳。
type Store[T any] struct {
	name string
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]entry[T]

	// now 可在测试中替换以控制时钟
	now func() time.Time
}

// NewStore 创建存储
func NewStore[T any](name string, ttl time.Duration) *Store[T] {
	return &Store[T]{
		name:    name,
		ttl:     ttl,
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
}

// Get 读取条目；键不存在或条目年龄 >= TTL 时返回未命中
func (s *Store[T]) Get(ctx context.Context, key string) (T, bool) {
	_, span := tracer.Start(ctx, "memstore.Get")
	span.SetAttributes(
		attribute.String("cache.store", s.name),
		attribute.String("cache.key", key),
	)
	defer span.End()

	s.mu.RLock()
	e, ok := s.entries[key]
	now := s.now()
	s.mu.RUnlock()

	if !ok || now.Sub(e.createdAt) >= s.ttl {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		metrics.CacheMissesTotal.WithLabelValues(s.name).Inc()
		var zero T
		return zero, false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	metrics.CacheHitsTotal.WithLabelValues(s.name).Inc()
	return e.data, true
}

// Set 写入条目，覆盖旧值并以当前时间打戳
func (s *Store[T]) Set(ctx context.Context, key string, value T) {
	_, span := tracer.Start(ctx, "memstore.Set")
	span.SetAttributes(
		attribute.String("cache.store", s.name),
		attribute.String("cache.key", key),
	)
	defer span.End()

	s.mu.Lock()
	s.entries[key] = entry[T]{data: value, createdAt: s.now()}
	s.mu.Unlock()
}

// Delete 删除指定键（用于写后失效）
func (s *Store[T]) Delete(ctx context.Context, keys ...string) {
	_, span := tracer.Start(ctx, "memstore.Delete")
	span.SetAttributes(
		attribute.String("cache.store", s.name),
		attribute.Int("cache.key_count", len(keys)),
	)
	defer span.End()

	s.mu.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mu.Unlock()
}

// Len 当前条目数（含未清扫的过期条目）
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep 物理删除已过期条目，返回删除数量。与惰性过期读取可并发。
func (s *Store[T]) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.createdAt) >= s.ttl {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues(s.name).Add(float64(removed))
	}
	return removed
}

// Name 实现 Sweepable
func (s *Store[T]) Name() string {
	return s.name
}
