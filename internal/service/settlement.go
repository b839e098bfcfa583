package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService turns externally initiated claims into PENDING entries and
// lets an admin settle them exactly once.
type SettlementService struct {
	store   QueryStore
	buckets BucketStore
	ledger  LedgerStore
	audit   *AuditService
}

func NewSettlementService(store QueryStore) *SettlementService {
	return &SettlementService{
		store: store,
		audit: NewAuditService(),
	}
}

// DepositClaim describes funds the user says have arrived.
type DepositClaim struct {
	Bucket     domain.Bucket
	Amount     decimal.Decimal
	Asset      string
	ReceiptURL string
	Reference  string
}

// WithdrawalClaim describes funds the user wants sent out.
type WithdrawalClaim struct {
	Bucket      domain.Bucket
	Amount      decimal.Decimal
	Asset       string
	Destination string
}

// ClaimDeposit records a PENDING deposit with no balance effect. A reference
// already used by another deposit of the account fails with ErrDuplicateReference.
func (s *SettlementService) ClaimDeposit(ctx context.Context, accountID uuid.UUID, claim DepositClaim) (*models.LedgerEntry, error) {
	bucket, err := swappableBucket(claim.Bucket)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(claim.Amount); err != nil {
		return nil, err
	}
	asset := normalizeAsset(claim.Asset)
	reference := strings.TrimSpace(claim.Reference)

	var entry models.LedgerEntry
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := s.buckets.Lock(ctx, qtx, accountID); err != nil {
			return err
		}
		if reference != "" {
			_, err := qtx.GetDepositByReference(ctx, accountID, reference)
			if err == nil {
				return fmt.Errorf("%w: %s", models.ErrDuplicateReference, reference)
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("check deposit reference: %w", err)
			}
		}

		metadata := map[string]any{
			domain.MetaBucket: string(bucket),
			domain.MetaAsset:  asset,
			domain.MetaAmount: claim.Amount.String(),
		}
		if claim.ReceiptURL != "" {
			metadata[domain.MetaReceiptURL] = claim.ReceiptURL
		}
		if reference != "" {
			metadata[domain.MetaReference] = reference
		}
		entry, err = s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          fmt.Sprintf("Deposit of %s (%s) to %s", domain.FormatUSD(claim.Amount), asset, bucket),
			Kind:           domain.KindDeposit,
			Classification: domain.ClassDeposit,
			Amount:         claim.Amount,
			Status:         domain.StatusPending,
			Metadata:       metadata,
		})
		return err
	})
	observeOperation(domain.ClassDeposit, err)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ClaimWithdrawal records a PENDING withdrawal. The bucket must cover the amount
// when the claim is made; funds move only on approval.
func (s *SettlementService) ClaimWithdrawal(ctx context.Context, accountID uuid.UUID, claim WithdrawalClaim) (*models.LedgerEntry, error) {
	bucket, err := swappableBucket(claim.Bucket)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(claim.Amount); err != nil {
		return nil, err
	}
	asset := normalizeAsset(claim.Asset)

	var entry models.LedgerEntry
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := s.buckets.Lock(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		if err := requireBalance(current, bucket, claim.Amount); err != nil {
			return err
		}

		metadata := map[string]any{
			domain.MetaBucket: string(bucket),
			domain.MetaAsset:  asset,
			domain.MetaAmount: claim.Amount.String(),
		}
		if d := strings.TrimSpace(claim.Destination); d != "" {
			metadata[domain.MetaDestination] = d
		}
		entry, err = s.ledger.Append(ctx, qtx, accountID, EntryDraft{
			Title:          fmt.Sprintf("Withdrawal of %s (%s) from %s", domain.FormatUSD(claim.Amount), asset, bucket),
			Kind:           domain.KindWithdraw,
			Classification: domain.ClassWithdrawal,
			Amount:         claim.Amount.Neg(),
			Status:         domain.StatusPending,
			Metadata:       metadata,
		})
		return err
	})
	observeOperation(domain.ClassWithdrawal, err)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SettlementResult is a settled entry and the bucket set after settlement.
type SettlementResult struct {
	Entry   models.LedgerEntry `json:"entry"`
	Buckets models.BucketSet   `json:"buckets"`
	Applied decimal.Decimal    `json:"applied"`
}

// Approve settles a PENDING claim. Deposits credit the claimed amount;
// withdrawals debit what the bucket still holds, up to the claimed amount.
func (s *SettlementService) Approve(ctx context.Context, actor Actor, entryID uuid.UUID) (*SettlementResult, error) {
	if !actor.Privileged {
		return nil, models.ErrNotPrivileged
	}

	var result SettlementResult
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		entry, err := s.ledger.Lock(ctx, qtx, entryID)
		if err != nil {
			return err
		}
		if !canTransition(entry.Status, domain.StatusSuccess) {
			return fmt.Errorf("%w: entry is %s", models.ErrInvalidStatusTransition, entry.Status)
		}
		bucket, err := swappableBucket(domain.Bucket(entry.MetaString(domain.MetaBucket)))
		if err != nil {
			return fmt.Errorf("entry %s: %w", entryID, err)
		}

		current, err := s.buckets.Lock(ctx, qtx, entry.AccountID)
		if err != nil {
			return err
		}

		var applied decimal.Decimal
		switch entry.Classification {
		case domain.ClassDeposit:
			applied = entry.Amount.Abs()
		case domain.ClassWithdrawal:
			have, _ := current.Get(bucket)
			applied = decimal.Min(entry.Amount.Abs(), have).Neg()
		default:
			return fmt.Errorf("%w: %s entries are not settled", models.ErrInvalidStatusTransition, entry.Classification)
		}

		updated := current
		if !applied.IsZero() {
			updated, err = s.buckets.ApplyDelta(ctx, qtx, entry.AccountID, bucket, applied)
			if err != nil {
				return err
			}
		}

		settlement := map[string]any{
			"applied_amount": applied.Abs().String(),
			"settled_by":     actorLabel(actor),
		}
		settled, err := s.ledger.UpdateStatus(ctx, qtx, entryID, domain.StatusSuccess, "", settlement)
		if err != nil {
			return err
		}
		if err := s.writeAudit(ctx, qtx, actor, entry, settled, "approved", settlement); err != nil {
			return err
		}
		result = SettlementResult{Entry: settled, Buckets: updated, Applied: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.IncrementSettlement("approved")
	zap.L().Info("ledger entry approved",
		zap.String("entry_id", entryID.String()),
		zap.String("account_id", result.Entry.AccountID.String()),
		zap.String("applied", result.Applied.String()))
	return &result, nil
}

// Reject marks a PENDING claim FAILED with an optional reason. Balances are untouched.
func (s *SettlementService) Reject(ctx context.Context, actor Actor, entryID uuid.UUID, reason string) (*SettlementResult, error) {
	if !actor.Privileged {
		return nil, models.ErrNotPrivileged
	}
	reason = strings.TrimSpace(reason)

	var result SettlementResult
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		entry, err := s.ledger.Lock(ctx, qtx, entryID)
		if err != nil {
			return err
		}
		settlement := map[string]any{"settled_by": actorLabel(actor)}
		if reason != "" {
			settlement["reason"] = reason
		}
		settled, err := s.ledger.UpdateStatus(ctx, qtx, entryID, domain.StatusFailed, reason, settlement)
		if err != nil {
			return err
		}
		buckets, err := s.buckets.Get(ctx, qtx, entry.AccountID)
		if err != nil {
			return err
		}
		if err := s.writeAudit(ctx, qtx, actor, entry, settled, "rejected", settlement); err != nil {
			return err
		}
		result = SettlementResult{Entry: settled, Buckets: buckets, Applied: decimal.Zero}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.IncrementSettlement("rejected")
	return &result, nil
}

// ListPending returns PENDING entries oldest first.
func (s *SettlementService) ListPending(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	f := NormalizeLedgerFilter(models.LedgerFilter{Limit: limit, Offset: offset})
	items, err := s.store.Queries().ListLedgerEntriesByStatus(ctx, repository.ListLedgerEntriesByStatusParams{
		Status: domain.StatusPending,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	return items, nil
}

// PendingCount reports how many entries wait for settlement.
func (s *SettlementService) PendingCount(ctx context.Context) (int64, error) {
	return s.store.Queries().CountLedgerEntriesByStatus(ctx, domain.StatusPending)
}

func (s *SettlementService) writeAudit(ctx context.Context, qtx repository.Querier, actor Actor, before, after models.LedgerEntry, action string, settlement map[string]any) error {
	return s.audit.Write(ctx, qtx, AuditEvent{
		EntityType: auditLedgerEntry,
		EntityID:   after.ID,
		Actor:      actor,
		Action:     action,
		PrevState:  string(before.Status),
		NextState:  string(after.Status),
		Metadata:   settlement,
	})
}
