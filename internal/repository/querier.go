package repository

import (
	"context"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Querier is the row-level data access contract. Missing rows are reported as
// pgx.ErrNoRows by every implementation.
type Querier interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	CreateAccount(ctx context.Context, arg CreateAccountParams) (models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByUser(ctx context.Context, userID uuid.UUID) (models.Account, error)

	CreateBucketSet(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error)
	GetBucketSet(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error)
	GetBucketSetForUpdate(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error)
	IncrementBucket(ctx context.Context, arg IncrementBucketParams) (models.BucketSet, error)
	ListMirrorDrift(ctx context.Context) ([]MirrorDriftRow, error)

	UpsertProduct(ctx context.Context, arg UpsertProductParams) (models.InvestmentProduct, error)
	GetProduct(ctx context.Context, id uuid.UUID) (models.InvestmentProduct, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]models.InvestmentProduct, error)

	InsertPosition(ctx context.Context, arg InsertPositionParams) (models.InvestmentPosition, error)
	GetPosition(ctx context.Context, id uuid.UUID) (models.InvestmentPosition, error)
	GetPositionForUpdate(ctx context.Context, id uuid.UUID) (models.InvestmentPosition, error)
	UpdatePositionAmounts(ctx context.Context, arg UpdatePositionAmountsParams) (models.InvestmentPosition, error)
	ListPositionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.InvestmentPosition, error)
	SumPositionBalances(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)

	InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (models.LedgerEntry, error)
	GetLedgerEntry(ctx context.Context, id uuid.UUID) (models.LedgerEntry, error)
	GetLedgerEntryForUpdate(ctx context.Context, id uuid.UUID) (models.LedgerEntry, error)
	UpdateLedgerEntryStatus(ctx context.Context, arg UpdateLedgerEntryStatusParams) (int64, error)
	ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]models.LedgerEntry, error)
	ListLedgerEntriesByStatus(ctx context.Context, arg ListLedgerEntriesByStatusParams) ([]models.LedgerEntry, error)
	CountLedgerEntriesByStatus(ctx context.Context, status domain.EntryStatus) (int64, error)
	GetDepositByReference(ctx context.Context, accountID uuid.UUID, reference string) (models.LedgerEntry, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
	ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) (int64, error)
}

type CreateUserParams struct {
	ID       uuid.UUID
	Username string
	Email    string
	Role     string
}

type CreateAccountParams struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Currency string
}

type IncrementBucketParams struct {
	AccountID uuid.UUID
	Bucket    domain.Bucket
	Delta     decimal.Decimal
}

type MirrorDriftRow struct {
	AccountID       uuid.UUID
	Investments     decimal.Decimal
	PositionBalance decimal.Decimal
}

type UpsertProductParams struct {
	ID       uuid.UUID
	Name     string
	Strategy string
	Currency string
	Minimum  decimal.Decimal
	Active   bool
}

type InsertPositionParams struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	ProductID uuid.UUID
	Name      string
	Strategy  string
	Currency  string
	Principal decimal.Decimal
}

type UpdatePositionAmountsParams struct {
	ID             uuid.UUID
	PrincipalDelta decimal.Decimal
	BalanceDelta   decimal.Decimal
	PnLDelta       decimal.Decimal
	Status         domain.PositionStatus
}

type InsertLedgerEntryParams struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Title          string
	Kind           domain.EntryKind
	Classification domain.Classification
	Amount         decimal.Decimal
	Currency       string
	Status         domain.EntryStatus
	Metadata       map[string]any
}

type UpdateLedgerEntryStatusParams struct {
	ID         uuid.UUID
	Status     domain.EntryStatus
	Note       *string
	Settlement map[string]any
}

type ListLedgerEntriesParams struct {
	AccountID uuid.UUID
	models.LedgerFilter
}

type ListLedgerEntriesByStatusParams struct {
	Status domain.EntryStatus
	Limit  int
	Offset int
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}
