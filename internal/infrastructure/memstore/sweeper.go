package memstore

import (
	"context"
	"time"

	"smartcheck-api/pkg/logger"
)

// Sweepable 可被周期清扫的存储
type Sweepable interface {
	Sweep(now time.Time) int
	Name() string
}

// Sweeper 周期清扫器。显式持有后台任务的停止句柄，
// 而不是绑定进程生命周期的不可停止定时器。
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper 创建清扫器
func NewSweeper(interval time.Duration, targets ...Sweepable) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		interval: interval,
		targets:  targets,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 启动后台清扫循环
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweepOnce()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop 停止清扫并等待循环退出；只能调用一次
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweepOnce() {
	now := time.Now()
	for _, t := range s.targets {
		if removed := t.Sweep(now); removed > 0 {
			logger.Debug(context.Background(), "cache sweep",
				"store", t.Name(),
				"removed", removed,
			)
		}
	}
}
