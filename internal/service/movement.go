package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actor is the already-authenticated caller of a privileged operation.
type Actor struct {
	ID         uuid.UUID
	Privileged bool
}

func (a Actor) idPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// MovementResult is the state after a money movement operation commits.
type MovementResult struct {
	Buckets  models.BucketSet           `json:"buckets"`
	Position *models.InvestmentPosition `json:"position,omitempty"`
	Entry    *models.LedgerEntry        `json:"entry,omitempty"`
	Applied  decimal.Decimal            `json:"applied"`
}

// MovementService runs every balance-changing operation as one transaction:
// lock the bucket set, lock positions, validate, increment, append one entry.
type MovementService struct {
	store     QueryStore
	buckets   BucketStore
	positions PositionStore
	ledger    LedgerStore
	audit     *AuditService
}

func NewMovementService(store QueryStore) *MovementService {
	return &MovementService{
		store: store,
		audit: NewAuditService(),
	}
}

// Swap moves amount between two swappable buckets and records a zero-net transfer.
func (s *MovementService) Swap(ctx context.Context, accountID uuid.UUID, from, to domain.Bucket, amount decimal.Decimal) (*MovementResult, error) {
	from, err := swappableBucket(from)
	if err != nil {
		return nil, err
	}
	to, err = swappableBucket(to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%w: %s", models.ErrSameBucket, from)
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result MovementResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := s.buckets.Lock(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		if err := requireBalance(current, from, amount); err != nil {
			return err
		}
		if _, err := s.buckets.ApplyDelta(ctx, qtx, accountID, from, amount.Neg()); err != nil {
			return err
		}
		updated, err := s.buckets.ApplyDelta(ctx, qtx, accountID, to, amount)
		if err != nil {
			return err
		}

		entry, err := s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          fmt.Sprintf("Swapped %s from %s to %s", domain.FormatUSD(amount), from, to),
			Kind:           domain.KindTransfer,
			Classification: domain.ClassSwap,
			Amount:         decimal.Zero,
			Metadata: map[string]any{
				domain.MetaFromBucket: string(from),
				domain.MetaToBucket:   string(to),
				domain.MetaAmount:     amount.String(),
			},
		})
		if err != nil {
			return err
		}
		result = MovementResult{Buckets: updated, Entry: &entry, Applied: amount}
		return nil
	})
	observeOperation(domain.ClassSwap, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// InvestStartRequest opens a new position funded from Source.
type InvestStartRequest struct {
	Source    domain.Bucket
	ProductID uuid.UUID
	Strategy  string
	Amount    decimal.Decimal
}

func (s *MovementService) InvestStart(ctx context.Context, accountID uuid.UUID, req InvestStartRequest) (*MovementResult, error) {
	source, err := fundingBucket(req.Source)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	var result MovementResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		product, err := qtx.GetProduct(ctx, req.ProductID)
		if err != nil {
			return notFound(err, models.ErrProductNotFound, "get product")
		}
		if !product.Active {
			return fmt.Errorf("%w: %s is not active", models.ErrProductNotFound, product.Name)
		}
		if req.Amount.LessThan(product.Minimum) {
			return fmt.Errorf("%w: minimum is %s", models.ErrBelowMinimum, domain.FormatUSD(product.Minimum))
		}

		current, err := s.buckets.Lock(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		if err := requireBalance(current, source, req.Amount); err != nil {
			return err
		}

		position, err := s.positions.Create(ctx, qtx, accountID, product, req.Strategy, req.Amount)
		if err != nil {
			return err
		}
		updated, err := s.moveIntoInvestments(ctx, qtx, accountID, source, req.Amount)
		if err != nil {
			return err
		}

		entry, err := s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          fmt.Sprintf("Invested %s in %s", domain.FormatUSD(req.Amount), product.Name),
			Kind:           domain.KindTransfer,
			Classification: domain.ClassInvestStart,
			Amount:         req.Amount.Neg(),
			Metadata: map[string]any{
				domain.MetaSourceBucket: string(source),
				domain.MetaPositionID:   position.ID.String(),
				domain.MetaProductID:    product.ID.String(),
				domain.MetaAmount:       req.Amount.String(),
			},
		})
		if err != nil {
			return err
		}
		if err := s.checkMirror(ctx, qtx, accountID, updated); err != nil {
			return err
		}
		result = MovementResult{Buckets: updated, Position: &position, Entry: &entry, Applied: req.Amount}
		return nil
	})
	observeOperation(domain.ClassInvestStart, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// InvestTopUp adds capital to an owned position. The product minimum applies
// while the product is still in the catalog.
func (s *MovementService) InvestTopUp(ctx context.Context, accountID, positionID uuid.UUID, source domain.Bucket, amount decimal.Decimal) (*MovementResult, error) {
	source, err := fundingBucket(source)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result MovementResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := s.buckets.Lock(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		position, err := s.positions.Lock(ctx, qtx, accountID, positionID)
		if err != nil {
			return err
		}

		product, err := qtx.GetProduct(ctx, position.ProductID)
		switch {
		case err == nil:
			if amount.LessThan(product.Minimum) {
				return fmt.Errorf("%w: minimum is %s", models.ErrBelowMinimum, domain.FormatUSD(product.Minimum))
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("get product: %w", err)
		}

		if err := requireBalance(current, source, amount); err != nil {
			return err
		}
		updatedPosition, err := s.positions.AdjustPrincipal(ctx, qtx, accountID, positionID, amount)
		if err != nil {
			return err
		}
		updated, err := s.moveIntoInvestments(ctx, qtx, accountID, source, amount)
		if err != nil {
			return err
		}

		entry, err := s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          fmt.Sprintf("Added %s to %s", domain.FormatUSD(amount), position.Name),
			Kind:           domain.KindTransfer,
			Classification: domain.ClassInvestTopUp,
			Amount:         amount.Neg(),
			Metadata: map[string]any{
				domain.MetaSourceBucket: string(source),
				domain.MetaPositionID:   positionID.String(),
				domain.MetaProductID:    position.ProductID.String(),
				domain.MetaAmount:       amount.String(),
			},
		})
		if err != nil {
			return err
		}
		if err := s.checkMirror(ctx, qtx, accountID, updated); err != nil {
			return err
		}
		result = MovementResult{Buckets: updated, Position: &updatedPosition, Entry: &entry, Applied: amount}
		return nil
	})
	observeOperation(domain.ClassInvestTopUp, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// InvestWithdraw moves amount out of a position into target.
func (s *MovementService) InvestWithdraw(ctx context.Context, accountID, positionID uuid.UUID, target domain.Bucket, amount decimal.Decimal) (*MovementResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.withdraw(ctx, accountID, positionID, target, &amount, domain.ClassInvestWithdraw)
}

// InvestWithdrawAll moves the full position balance into target.
func (s *MovementService) InvestWithdrawAll(ctx context.Context, accountID, positionID uuid.UUID, target domain.Bucket) (*MovementResult, error) {
	return s.withdraw(ctx, accountID, positionID, target, nil, domain.ClassInvestWithdrawAll)
}

// withdraw withdraws amount, or the whole balance when amount is nil.
func (s *MovementService) withdraw(ctx context.Context, accountID, positionID uuid.UUID, target domain.Bucket, amount *decimal.Decimal, class domain.Classification) (*MovementResult, error) {
	target, err := parseBucket(target)
	if err != nil {
		return nil, err
	}
	if !target.ReceivesWithdrawals() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTargetBucket, target)
	}

	var result MovementResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := s.buckets.Lock(ctx, qtx, accountID); err != nil {
			return err
		}
		position, err := s.positions.Lock(ctx, qtx, accountID, positionID)
		if err != nil {
			return err
		}

		requested := position.Balance
		if amount != nil {
			requested = *amount
		}
		if !requested.IsPositive() {
			return fmt.Errorf("%w: position %s has no balance", models.ErrInsufficientFunds, positionID)
		}
		if position.Balance.LessThan(requested) {
			return fmt.Errorf("%w: position balance is %s", models.ErrInsufficientFunds, domain.FormatUSD(position.Balance))
		}

		updatedPosition, applied, err := s.positions.AdjustBalance(ctx, qtx, accountID, positionID, requested.Neg())
		if err != nil {
			return err
		}
		withdrawn := applied.Neg()
		if _, err := s.buckets.ApplyDelta(ctx, qtx, accountID, domain.BucketInvestments, applied); err != nil {
			if errors.Is(err, models.ErrInsufficientFunds) {
				return integrityAlert(accountID, positionID, err)
			}
			return err
		}
		updated, err := s.buckets.ApplyDelta(ctx, qtx, accountID, target, withdrawn)
		if err != nil {
			return err
		}

		title := fmt.Sprintf("Withdrew %s from %s to %s", domain.FormatUSD(withdrawn), position.Name, target)
		if class == domain.ClassInvestWithdrawAll {
			title = fmt.Sprintf("Closed %s, %s to %s", position.Name, domain.FormatUSD(withdrawn), target)
		}
		entry, err := s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          title,
			Kind:           domain.KindWithdraw,
			Classification: class,
			Amount:         withdrawn,
			Metadata: map[string]any{
				domain.MetaTargetBucket: string(target),
				domain.MetaPositionID:   positionID.String(),
				domain.MetaProductID:    position.ProductID.String(),
				domain.MetaRequested:    requested.String(),
				domain.MetaApplied:      withdrawn.String(),
			},
		})
		if err != nil {
			return err
		}
		if err := s.checkMirror(ctx, qtx, accountID, updated); err != nil {
			return err
		}
		result = MovementResult{Buckets: updated, Position: &updatedPosition, Entry: &entry, Applied: withdrawn}
		return nil
	})
	observeOperation(class, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// InvestPnLAdjust applies a profit or loss to a position, clamped so the
// balance stays non-negative, and mirrors the applied delta into investments.
// A zero applied delta changes nothing and appends no entry.
func (s *MovementService) InvestPnLAdjust(ctx context.Context, accountID, positionID uuid.UUID, delta decimal.Decimal, actor Actor) (*MovementResult, error) {
	if !actor.Privileged {
		return nil, models.ErrNotPrivileged
	}
	if !domain.InRange(delta) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAmount, delta.String())
	}

	var result MovementResult
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := s.buckets.Lock(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		updatedPosition, applied, err := s.positions.AdjustPnL(ctx, qtx, accountID, positionID, delta)
		if err != nil {
			return err
		}
		if applied.IsZero() {
			result = MovementResult{Buckets: current, Position: &updatedPosition, Applied: decimal.Zero}
			return nil
		}

		updated, err := s.buckets.ApplyDelta(ctx, qtx, accountID, domain.BucketInvestments, applied)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientFunds) {
				return integrityAlert(accountID, positionID, err)
			}
			return err
		}

		kind, verb := domain.KindDeposit, "Profit"
		if applied.IsNegative() {
			kind, verb = domain.KindWithdraw, "Loss"
		}
		entry, err := s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          fmt.Sprintf("%s of %s on %s", verb, domain.FormatUSD(applied.Abs()), updatedPosition.Name),
			Kind:           kind,
			Classification: domain.ClassInvestPnL,
			Amount:         applied.Abs(),
			Metadata: map[string]any{
				domain.MetaPositionID: positionID.String(),
				domain.MetaProductID:  updatedPosition.ProductID.String(),
				domain.MetaRequested:  delta.String(),
				domain.MetaApplied:    applied.String(),
			},
		})
		if err != nil {
			return err
		}
		if err := s.audit.Write(ctx, qtx, AuditEvent{
			EntityType: auditPosition,
			EntityID:   positionID,
			Actor:      actor,
			Action:     "pnl_adjusted",
			PrevState:  string(statusFor(updatedPosition.Balance.Sub(applied))),
			NextState:  string(updatedPosition.Status),
			Metadata: map[string]any{
				"requested": delta.String(),
				"applied":   applied.String(),
				"entry_id":  entry.ID.String(),
			},
		}); err != nil {
			return err
		}
		if err := s.checkMirror(ctx, qtx, accountID, updated); err != nil {
			return err
		}
		result = MovementResult{Buckets: updated, Position: &updatedPosition, Entry: &entry, Applied: applied}
		return nil
	})
	observeOperation(domain.ClassInvestPnL, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// moveIntoInvestments debits source and credits investments by amount.
func (s *MovementService) moveIntoInvestments(ctx context.Context, qtx repository.Querier, accountID uuid.UUID, source domain.Bucket, amount decimal.Decimal) (models.BucketSet, error) {
	if _, err := s.buckets.ApplyDelta(ctx, qtx, accountID, source, amount.Neg()); err != nil {
		return models.BucketSet{}, err
	}
	return s.buckets.ApplyDelta(ctx, qtx, accountID, domain.BucketInvestments, amount)
}

// checkMirror compares the investments bucket with the position balances. A
// mismatch is reported, not returned.
func (s *MovementService) checkMirror(ctx context.Context, qtx repository.Querier, accountID uuid.UUID, buckets models.BucketSet) error {
	sum, err := qtx.SumPositionBalances(ctx, accountID)
	if err != nil {
		return fmt.Errorf("sum position balances: %w", err)
	}
	if !sum.Equal(buckets.Investments) {
		observability.IncrementMirrorDrift("tx")
		zap.L().Error("integrity alert: investments mirror drift",
			zap.String("alert", "integrity"),
			zap.String("account_id", accountID.String()),
			zap.String("investments", buckets.Investments.String()),
			zap.String("position_balance", sum.String()))
	}
	return nil
}

func integrityAlert(accountID, positionID uuid.UUID, cause error) error {
	zap.L().Error("integrity alert: investments bucket would go negative",
		zap.String("alert", "integrity"),
		zap.String("account_id", accountID.String()),
		zap.String("position_id", positionID.String()),
		zap.Error(cause))
	return fmt.Errorf("%w: account %s", models.ErrNegativeWalletInvariant, accountID)
}

func fundingBucket(name domain.Bucket) (domain.Bucket, error) {
	b, err := parseBucket(name)
	if err != nil {
		return "", err
	}
	if !b.FundsInvestments() {
		return "", fmt.Errorf("%w: %s", models.ErrInvalidSourceBucket, b)
	}
	return b, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !domain.ValidAmount(amount) {
		return fmt.Errorf("%w: %s", models.ErrInvalidAmount, amount.String())
	}
	return nil
}

func requireBalance(b models.BucketSet, bucket domain.Bucket, amount decimal.Decimal) error {
	have, _ := b.Get(bucket)
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s", models.ErrInsufficientFunds, bucket, domain.FormatUSD(have))
	}
	return nil
}

func observeOperation(class domain.Classification, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	observability.IncrementOperation(string(class), result)
}
