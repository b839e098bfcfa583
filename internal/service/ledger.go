package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// EntryDraft is a ledger entry before it has an id and timestamp.
type EntryDraft struct {
	Title          string
	Kind           domain.EntryKind
	Classification domain.Classification
	Amount         decimal.Decimal
	Status         domain.EntryStatus
	Metadata       map[string]any
}

// LedgerStore appends and settles ledger entries.
type LedgerStore struct{}

func (LedgerStore) Append(ctx context.Context, q repository.Querier, accountID uuid.UUID, draft EntryDraft) (models.LedgerEntry, error) {
	status := draft.Status
	if status == "" {
		status = domain.StatusSuccess
	}
	e, err := q.InsertLedgerEntry(ctx, repository.InsertLedgerEntryParams{
		ID:             uuid.New(),
		AccountID:      accountID,
		Title:          draft.Title,
		Kind:           draft.Kind,
		Classification: draft.Classification,
		Amount:         draft.Amount,
		Currency:       domain.ReferenceCurrency,
		Status:         status,
		Metadata:       draft.Metadata,
	})
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return e, nil
}

// Lock loads an entry FOR UPDATE.
func (LedgerStore) Lock(ctx context.Context, q repository.Querier, entryID uuid.UUID) (models.LedgerEntry, error) {
	e, err := q.GetLedgerEntryForUpdate(ctx, entryID)
	if err != nil {
		return models.LedgerEntry{}, notFound(err, models.ErrEntryNotFound, "lock ledger entry")
	}
	return e, nil
}

// UpdateStatus settles a PENDING entry. settlement is stored under
// metadata.settlement.
func (s LedgerStore) UpdateStatus(ctx context.Context, q repository.Querier, entryID uuid.UUID, next domain.EntryStatus, note string, settlement map[string]any) (models.LedgerEntry, error) {
	current, err := s.Lock(ctx, q, entryID)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if !canTransition(current.Status, next) {
		return models.LedgerEntry{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, current.Status, next)
	}

	rows, err := q.UpdateLedgerEntryStatus(ctx, repository.UpdateLedgerEntryStatusParams{
		ID:         entryID,
		Status:     next,
		Note:       textParam(note),
		Settlement: settlement,
	})
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("update ledger entry status: %w", err)
	}
	if err := requireExactlyOne(rows, "update ledger entry status"); err != nil {
		return models.LedgerEntry{}, err
	}

	e, err := q.GetLedgerEntry(ctx, entryID)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("reload ledger entry: %w", err)
	}
	return e, nil
}

// ListForAccount returns entries newest first.
func (LedgerStore) ListForAccount(ctx context.Context, q repository.Querier, accountID uuid.UUID, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	filter = NormalizeLedgerFilter(filter)
	items, err := q.ListLedgerEntries(ctx, repository.ListLedgerEntriesParams{
		AccountID:    accountID,
		LedgerFilter: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return items, nil
}

// NormalizeLedgerFilter applies the default and maximum page size and clamps
// a negative offset to zero.
func NormalizeLedgerFilter(f models.LedgerFilter) models.LedgerFilter {
	if f.Limit <= 0 {
		f.Limit = defaultLedgerLimit
	}
	if f.Limit > maxLedgerLimit {
		f.Limit = maxLedgerLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
