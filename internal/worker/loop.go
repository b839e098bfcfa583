package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// loop runs a tick function once at start and then on every interval until
// its context is done or stop is called. Ticks never overlap.
type loop struct {
	name     string
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newLoop(name string, interval time.Duration) *loop {
	return &loop{name: name, interval: interval, stopCh: make(chan struct{})}
}

func (l *loop) setInterval(interval time.Duration) {
	if interval > 0 {
		l.interval = interval
	}
}

func (l *loop) run(ctx context.Context, tick func(context.Context)) {
	logger := zap.L().With(zap.String("worker", l.name))
	logger.Info("worker starting", zap.Duration("interval", l.interval))
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context canceled")
			return
		case <-l.stopCh:
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
