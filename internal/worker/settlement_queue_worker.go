package worker

import (
	"context"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/observability"
	"go.uber.org/zap"
)

const settlementQueueWorkerName = "settlement_queue"

// PendingCounter reports how many ledger entries await settlement.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int64, error)
}

// SettlementQueueWorker publishes the size of the settlement queue as a gauge.
// It never settles anything; approval stays a manual admin action.
type SettlementQueueWorker struct {
	counter PendingCounter
	loop    *loop
}

func NewSettlementQueueWorker(counter PendingCounter) *SettlementQueueWorker {
	return &SettlementQueueWorker{
		counter: counter,
		loop:    newLoop(settlementQueueWorkerName, 30*time.Second),
	}
}

func (w *SettlementQueueWorker) WithInterval(interval time.Duration) *SettlementQueueWorker {
	w.loop.setInterval(interval)
	return w
}

// Start blocks until ctx is done or Stop is called.
func (w *SettlementQueueWorker) Start(ctx context.Context) {
	w.loop.run(ctx, func(ctx context.Context) { w.ProcessOnce(ctx) })
}

func (w *SettlementQueueWorker) Stop() {
	w.loop.stop()
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SettlementQueueWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce samples the queue size immediately and returns it.
func (w *SettlementQueueWorker) ProcessOnce(ctx context.Context) int64 {
	n, err := w.counter.PendingCount(ctx)
	if err != nil {
		observability.IncrementWorkerRun(settlementQueueWorkerName, "failed")
		zap.L().Error("count pending settlements failed", zap.Error(err))
		return 0
	}
	observability.SetPendingSettlements(n)
	observability.IncrementWorkerRun(settlementQueueWorkerName, "success")
	if n > 0 {
		zap.L().Info("settlements awaiting review", zap.Int64("pending", n))
	}
	return n
}
