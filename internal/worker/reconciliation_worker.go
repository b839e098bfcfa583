package worker

import (
	"context"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"go.uber.org/zap"
)

const reconciliationWorkerName = "reconciliation"

// MirrorChecker finds accounts whose investments bucket disagrees with their
// positions. *service.ReconciliationService satisfies it.
type MirrorChecker interface {
	Run(ctx context.Context) ([]repository.MirrorDriftRow, error)
}

// ReconciliationWorker periodically checks every account's investments
// mirror. Drift is reported, never repaired.
type ReconciliationWorker struct {
	checker MirrorChecker
	loop    *loop
}

// NewReconciliationWorker constructs a worker with a default hourly interval.
func NewReconciliationWorker(checker MirrorChecker) *ReconciliationWorker {
	return &ReconciliationWorker{
		checker: checker,
		loop:    newLoop(reconciliationWorkerName, time.Hour),
	}
}

func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	w.loop.setInterval(interval)
	return w
}

// Start blocks, checking once immediately and then on every interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.loop.run(ctx, func(ctx context.Context) { w.CheckOnce(ctx) })
}

func (w *ReconciliationWorker) Stop() {
	w.loop.stop()
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// CheckOnce runs a single pass and returns the number of drifting accounts,
// or -1 when the check itself failed.
func (w *ReconciliationWorker) CheckOnce(ctx context.Context) int {
	drift, err := w.checker.Run(ctx)
	switch {
	case err != nil:
		observability.IncrementWorkerRun(reconciliationWorkerName, "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return -1
	case len(drift) > 0:
		observability.IncrementWorkerRun(reconciliationWorkerName, "drift")
		zap.L().Warn("reconciliation found drifting accounts", zap.Int("accounts", len(drift)))
	default:
		observability.IncrementWorkerRun(reconciliationWorkerName, "success")
	}
	return len(drift)
}
