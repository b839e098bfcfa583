package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PositionStore owns investment position rows. Balances are clamped at zero and
// a position closes when its balance reaches zero.
type PositionStore struct{}

func (PositionStore) Create(ctx context.Context, q repository.Querier, accountID uuid.UUID, product models.InvestmentProduct, strategy string, principal decimal.Decimal) (models.InvestmentPosition, error) {
	if strategy == "" {
		strategy = product.Strategy
	}
	p, err := q.InsertPosition(ctx, repository.InsertPositionParams{
		ID:        uuid.New(),
		AccountID: accountID,
		ProductID: product.ID,
		Name:      product.Name,
		Strategy:  strategy,
		Currency:  domain.ReferenceCurrency,
		Principal: principal,
	})
	if err != nil {
		return models.InvestmentPosition{}, fmt.Errorf("insert position: %w", err)
	}
	return p, nil
}

// Lock loads a position FOR UPDATE and checks that accountID owns it.
func (PositionStore) Lock(ctx context.Context, q repository.Querier, accountID, positionID uuid.UUID) (models.InvestmentPosition, error) {
	p, err := q.GetPositionForUpdate(ctx, positionID)
	if err != nil {
		return models.InvestmentPosition{}, notFound(err, models.ErrPositionNotFound, "lock position")
	}
	if p.AccountID != accountID {
		return models.InvestmentPosition{}, models.ErrPositionNotOwnedByAccount
	}
	return p, nil
}

// AdjustBalance moves the balance by delta, clamped so it never drops below
// zero, and returns the delta actually applied.
func (s PositionStore) AdjustBalance(ctx context.Context, q repository.Querier, accountID, positionID uuid.UUID, delta decimal.Decimal) (models.InvestmentPosition, decimal.Decimal, error) {
	return s.adjust(ctx, q, accountID, positionID, delta, false)
}

// AdjustPnL is AdjustBalance that also accumulates the applied delta into pnl.
func (s PositionStore) AdjustPnL(ctx context.Context, q repository.Querier, accountID, positionID uuid.UUID, delta decimal.Decimal) (models.InvestmentPosition, decimal.Decimal, error) {
	return s.adjust(ctx, q, accountID, positionID, delta, true)
}

func (s PositionStore) adjust(ctx context.Context, q repository.Querier, accountID, positionID uuid.UUID, delta decimal.Decimal, pnl bool) (models.InvestmentPosition, decimal.Decimal, error) {
	p, err := s.Lock(ctx, q, accountID, positionID)
	if err != nil {
		return models.InvestmentPosition{}, decimal.Zero, err
	}
	applied := clampDelta(p.Balance, delta)
	if applied.IsZero() {
		return p, decimal.Zero, nil
	}

	params := repository.UpdatePositionAmountsParams{
		ID:           positionID,
		BalanceDelta: applied,
		Status:       statusFor(p.Balance.Add(applied)),
	}
	if pnl {
		params.PnLDelta = applied
	}
	updated, err := q.UpdatePositionAmounts(ctx, params)
	if err != nil {
		return models.InvestmentPosition{}, decimal.Zero, positionUpdateError(err)
	}
	return updated, applied, nil
}

// AdjustPrincipal records a contribution: principal and balance both grow by
// delta and the position reopens. Only positive deltas are accepted.
func (s PositionStore) AdjustPrincipal(ctx context.Context, q repository.Querier, accountID, positionID uuid.UUID, delta decimal.Decimal) (models.InvestmentPosition, error) {
	if !delta.IsPositive() {
		return models.InvestmentPosition{}, fmt.Errorf("%w: principal delta must be positive", models.ErrInvalidAmount)
	}
	if _, err := s.Lock(ctx, q, accountID, positionID); err != nil {
		return models.InvestmentPosition{}, err
	}
	updated, err := q.UpdatePositionAmounts(ctx, repository.UpdatePositionAmountsParams{
		ID:             positionID,
		PrincipalDelta: delta,
		BalanceDelta:   delta,
		Status:         domain.PositionActive,
	})
	if err != nil {
		return models.InvestmentPosition{}, positionUpdateError(err)
	}
	return updated, nil
}

// clampDelta returns max(balance+delta, 0) - balance.
func clampDelta(balance, delta decimal.Decimal) decimal.Decimal {
	next := balance.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	return next.Sub(balance)
}

func statusFor(balance decimal.Decimal) domain.PositionStatus {
	if balance.Sign() <= 0 {
		return domain.PositionClosed
	}
	return domain.PositionActive
}

func positionUpdateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: position balance guard", models.ErrInsufficientFunds)
	}
	return fmt.Errorf("update position: %w", err)
}
