package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackKeepsAuditRowsOfOtherTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	errAbort := errors.New("abort")

	written := make(chan struct{})
	committed := make(chan struct{})
	failed := make(chan error, 1)

	go func() {
		failed <- s.RunInTx(ctx, func(q repository.Querier) error {
			if _, err := q.InsertAuditLog(ctx, repository.InsertAuditLogParams{
				EntityType: "ledger_entry", EntityID: uuid.New(), Action: "approved",
			}); err != nil {
				return err
			}
			close(written)
			<-committed
			return errAbort
		})
	}()

	<-written
	keep := uuid.New()
	err := s.RunInTx(ctx, func(q repository.Querier) error {
		_, err := q.InsertAuditLog(ctx, repository.InsertAuditLogParams{
			EntityType: "ledger_entry", EntityID: keep, Action: "rejected",
		})
		return err
	})
	require.NoError(t, err)
	close(committed)
	require.ErrorIs(t, <-failed, errAbort)

	rows := s.AuditLog()
	require.Len(t, rows, 1)
	assert.Equal(t, keep, rows[0].EntityID)
	assert.Equal(t, "rejected", rows[0].Action)
}

func TestAuditIDsStayUniqueAfterRollback(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.RunInTx(ctx, func(q repository.Querier) error {
		_, _ = q.InsertAuditLog(ctx, repository.InsertAuditLogParams{EntityID: uuid.New()})
		return errors.New("rollback")
	})

	first, err := s.Queries().InsertAuditLog(ctx, repository.InsertAuditLogParams{EntityID: uuid.New()})
	require.NoError(t, err)
	second, err := s.Queries().InsertAuditLog(ctx, repository.InsertAuditLogParams{EntityID: uuid.New()})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, s.AuditLog(), 2)
}
