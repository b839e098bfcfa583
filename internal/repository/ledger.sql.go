package repository

import (
	"context"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, account_id, title, kind, classification, amount::TEXT, currency, status, metadata, note, created_at, settled_at`

func scanLedgerEntry(row rowScanner) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	var metadata []byte
	raw := make([]string, 1)
	if err := row.Scan(&e.ID, &e.AccountID, &e.Title, &e.Kind, &e.Classification, &raw[0],
		&e.Currency, &e.Status, &metadata, &e.Note, &e.CreatedAt, &e.SettledAt); err != nil {
		return models.LedgerEntry{}, err
	}
	if err := parseDecimals(raw, &e.Amount); err != nil {
		return models.LedgerEntry{}, err
	}
	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	e.Metadata = meta
	return e, nil
}

func collectLedgerEntries(rows pgx.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()
	var items []models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const insertLedgerEntry = `
INSERT INTO ledger_entries (
    id, account_id, title, kind, classification, amount, currency, status, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9, NOW())
RETURNING ` + ledgerColumns

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (models.LedgerEntry, error) {
	metadata, err := marshalMetadata(arg.Metadata)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return scanLedgerEntry(q.db.QueryRow(ctx, insertLedgerEntry,
		arg.ID, arg.AccountID, arg.Title, string(arg.Kind), string(arg.Classification),
		arg.Amount.String(), arg.Currency, string(arg.Status), metadata))
}

const getLedgerEntry = `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

func (q *Queries) GetLedgerEntry(ctx context.Context, id uuid.UUID) (models.LedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRow(ctx, getLedgerEntry, id))
}

const getLedgerEntryForUpdate = getLedgerEntry + ` FOR UPDATE`

func (q *Queries) GetLedgerEntryForUpdate(ctx context.Context, id uuid.UUID) (models.LedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRow(ctx, getLedgerEntryForUpdate, id))
}

// Only PENDING rows can be settled; anything else reports zero affected rows.
const updateLedgerEntryStatus = `
UPDATE ledger_entries
SET status = $2,
    note = COALESCE($3, note),
    metadata = metadata || jsonb_build_object('settlement', $4::JSONB),
    settled_at = NOW()
WHERE id = $1 AND status = 'PENDING'
`

func (q *Queries) UpdateLedgerEntryStatus(ctx context.Context, arg UpdateLedgerEntryStatusParams) (int64, error) {
	settlement, err := marshalMetadata(arg.Settlement)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, updateLedgerEntryStatus, arg.ID, string(arg.Status), arg.Note, settlement)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listLedgerEntries = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE account_id = $1
  AND ($2::TIMESTAMPTZ IS NULL OR created_at >= $2)
  AND ($3::TIMESTAMPTZ IS NULL OR created_at <= $3)
  AND ($4::TEXT = '' OR currency = $4 OR metadata->>'asset' = $4)
  AND ($5::TEXT = '' OR status = $5)
  AND ($6::TEXT = '' OR kind = $6)
  AND ($7::TEXT = '' OR classification = $7)
ORDER BY created_at DESC, seq DESC
LIMIT $8 OFFSET $9
`

func (q *Queries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]models.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listLedgerEntries,
		arg.AccountID, nullableTime(arg.From), nullableTime(arg.To), arg.Asset,
		string(arg.Status), string(arg.Kind), string(arg.Classification), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}

const listLedgerEntriesByStatus = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE status = $1
ORDER BY created_at ASC, seq ASC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListLedgerEntriesByStatus(ctx context.Context, arg ListLedgerEntriesByStatusParams) ([]models.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listLedgerEntriesByStatus, string(arg.Status), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}

const countLedgerEntriesByStatus = `SELECT COUNT(*) FROM ledger_entries WHERE status = $1`

func (q *Queries) CountLedgerEntriesByStatus(ctx context.Context, status domain.EntryStatus) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countLedgerEntriesByStatus, string(status)).Scan(&n)
	return n, err
}

const getDepositByReference = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE account_id = $1 AND classification = 'DEPOSIT' AND metadata->>'reference' = $2
`

func (q *Queries) GetDepositByReference(ctx context.Context, accountID uuid.UUID, reference string) (models.LedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRow(ctx, getDepositByReference, accountID, reference))
}

func nullableTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}
