package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 测试用可推进时钟
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestStore(ttl time.Duration) (*Store[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore[string]("test", ttl)
	s.now = clock.Now
	return s, clock
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Minute)

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	s.Set(ctx, "k", "v")
	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestStore_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(time.Minute)

	s.Set(ctx, "k", "v")

	// TTL 内（含最后一纳秒）可见
	clock.Advance(time.Minute - time.Nanosecond)
	_, ok := s.Get(ctx, "k")
	assert.True(t, ok)

	// 年龄恰好等于 TTL 时视为过期
	clock.Advance(time.Nanosecond)
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStore_SetRestampsEntry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(time.Minute)

	s.Set(ctx, "k", "old")
	clock.Advance(50 * time.Second)
	s.Set(ctx, "k", "new")

	// 距首次写入已超 TTL，但覆盖写重新打了时间戳
	clock.Advance(30 * time.Second)
	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Minute)

	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "2")
	s.Delete(ctx, "a", "b")

	_, ok := s.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "b")
	assert.False(t, ok)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(time.Minute)

	s.Set(ctx, "old", "1")
	clock.Advance(30 * time.Second)
	s.Set(ctx, "fresh", "2")
	clock.Advance(31 * time.Second)

	// 此刻 old 已过期、fresh 未过期
	removed := s.Sweep(clock.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get(ctx, "fresh")
	assert.True(t, ok)
}

func TestStore_LazyExpiryBeforeSweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(time.Minute)

	s.Set(ctx, "k", "v")
	clock.Advance(2 * time.Minute)

	// 未清扫的过期条目对读取不可见，但仍占据条目表
	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}
