package memstore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// Flight 在途请求合并：同一键的并发调用共享一次 producer 执行，
// 结果（或失败）对所有等待者一致；完成后在途标记无条件移除，
// 后续调用重新触发 producer。用于避免缓存失效瞬间的同键惊群。
type Flight struct {
	group singleflight.Group
}

// NewFlight 创建合并器
func NewFlight() *Flight {
	return &Flight{}
}

// GetOrFetch 若 key 已有在途执行则等待其结果，否则启动 producer。
// "检查并登记"一步在 singleflight 内部同步完成，两个并发调用
// 不会各自启动一次 producer。
func (f *Flight) GetOrFetch(ctx context.Context, key string, producer func() (any, error)) (any, error) {
	_, span := tracer.Start(ctx, "flight.GetOrFetch")
	span.SetAttributes(attribute.String("flight.key", key))
	defer span.End()

	v, err, shared := f.group.Do(key, producer)
	span.SetAttributes(attribute.Bool("flight.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v, nil
}
