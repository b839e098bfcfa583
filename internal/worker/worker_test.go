package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/ayo6706/wallet-ledger/internal/repository/memory"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (s *stubCounter) PendingCount(context.Context) (int64, error) {
	s.calls.Add(1)
	return s.n, s.err
}

func TestSettlementQueueWorkerProcessOnce(t *testing.T) {
	ok := &stubCounter{n: 3}
	assert.Equal(t, int64(3), NewSettlementQueueWorker(ok).ProcessOnce(context.Background()))

	failing := &stubCounter{err: errors.New("db down")}
	assert.Equal(t, int64(0), NewSettlementQueueWorker(failing).ProcessOnce(context.Background()))
}

func TestSettlementQueueWorkerRunsUntilStopped(t *testing.T) {
	counter := &stubCounter{}
	w := NewSettlementQueueWorker(counter).WithInterval(10 * time.Millisecond)
	stop := w.Run(context.Background())

	require.Eventually(t, func() bool { return counter.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stop()
	stop()
}

func TestSettlementQueueWorkerCountsRealClaims(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	accounts := service.NewAccountService(store)
	settlement := service.NewSettlementService(store)

	user, err := accounts.CreateUser(ctx, "queue", "queue@example.com", "user")
	require.NoError(t, err)
	acct, err := accounts.CreateAccount(ctx, user.ID)
	require.NoError(t, err)
	_, err = settlement.ClaimDeposit(ctx, acct.Account.ID, service.DepositClaim{Bucket: "cash", Amount: decimal.RequireFromString("12")})
	require.NoError(t, err)

	assert.Equal(t, int64(1), NewSettlementQueueWorker(settlement).ProcessOnce(ctx))
}

func TestReconciliationWorkerStopsOnContextCancel(t *testing.T) {
	w := NewReconciliationWorker(service.NewReconciliationService(memory.New())).WithInterval(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type stubChecker struct {
	rows []repository.MirrorDriftRow
	err  error
}

func (s stubChecker) Run(context.Context) ([]repository.MirrorDriftRow, error) {
	return s.rows, s.err
}

func TestReconciliationWorkerCheckOnce(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 0, NewReconciliationWorker(stubChecker{}).CheckOnce(ctx))
	assert.Equal(t, -1, NewReconciliationWorker(stubChecker{err: errors.New("timeout")}).CheckOnce(ctx))

	drift := []repository.MirrorDriftRow{{AccountID: uuid.New(), Investments: decimal.NewFromInt(5)}}
	assert.Equal(t, 1, NewReconciliationWorker(stubChecker{rows: drift}).CheckOnce(ctx))
}
