package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationService verifies the investments mirror across all accounts.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run reports every account whose investments bucket differs from the sum of
// its position balances. Drift is logged and counted; it is never corrected here.
func (s *ReconciliationService) Run(ctx context.Context) ([]repository.MirrorDriftRow, error) {
	rows, err := s.store.Queries().ListMirrorDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mirror drift query: %w", err)
	}

	for _, row := range rows {
		observability.IncrementMirrorDrift("reconciliation")
		zap.L().Error("integrity alert: investments mirror drift",
			zap.String("alert", "integrity"),
			zap.String("account_id", row.AccountID.String()),
			zap.String("investments", row.Investments.String()),
			zap.String("position_balance", row.PositionBalance.String()))
	}
	if len(rows) == 0 {
		zap.L().Info("investments mirror balanced")
	}
	return rows, nil
}
