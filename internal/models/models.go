package models

import (
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// BucketSet holds the named balances of one account. Every field is non-negative.
type BucketSet struct {
	AccountID   uuid.UUID       `json:"accountId"`
	Cash        decimal.Decimal `json:"cash"`
	Crypto      decimal.Decimal `json:"crypto"`
	Staking     decimal.Decimal `json:"staking"`
	Investments decimal.Decimal `json:"investments"`
	Earn        decimal.Decimal `json:"earn"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Get returns the value of a single bucket.
func (b BucketSet) Get(bucket domain.Bucket) (decimal.Decimal, bool) {
	switch bucket {
	case domain.BucketCash:
		return b.Cash, true
	case domain.BucketCrypto:
		return b.Crypto, true
	case domain.BucketStaking:
		return b.Staking, true
	case domain.BucketInvestments:
		return b.Investments, true
	case domain.BucketEarn:
		return b.Earn, true
	default:
		return decimal.Zero, false
	}
}

// With returns a copy with one bucket replaced.
func (b BucketSet) With(bucket domain.Bucket, value decimal.Decimal) BucketSet {
	switch bucket {
	case domain.BucketCash:
		b.Cash = value
	case domain.BucketCrypto:
		b.Crypto = value
	case domain.BucketStaking:
		b.Staking = value
	case domain.BucketInvestments:
		b.Investments = value
	case domain.BucketEarn:
		b.Earn = value
	}
	return b
}

// Total sums all buckets.
func (b BucketSet) Total() decimal.Decimal {
	return b.Cash.Add(b.Crypto).Add(b.Staking).Add(b.Investments).Add(b.Earn)
}

type InvestmentProduct struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Strategy  string          `json:"strategy"`
	Currency  string          `json:"currency"`
	Minimum   decimal.Decimal `json:"minimum"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
}

type InvestmentPosition struct {
	ID            uuid.UUID             `json:"id"`
	AccountID     uuid.UUID             `json:"accountId"`
	ProductID     uuid.UUID             `json:"productId"`
	Name          string                `json:"name"`
	Strategy      string                `json:"strategy"`
	Currency      string                `json:"currency"`
	Principal     decimal.Decimal       `json:"principal"`
	Balance       decimal.Decimal       `json:"balance"`
	PnL           decimal.Decimal       `json:"pnl"`
	Status        domain.PositionStatus `json:"status"`
	StartedAt     time.Time             `json:"startedAt"`
	LastUpdatedAt time.Time             `json:"lastUpdatedAt"`
}

// LedgerEntry is an immutable record of a value-moving operation. Only Status,
// Note, SettledAt and the settlement metadata key change after creation.
type LedgerEntry struct {
	ID             uuid.UUID             `json:"id"`
	AccountID      uuid.UUID             `json:"accountId"`
	Title          string                `json:"title"`
	Kind           domain.EntryKind      `json:"kind"`
	Classification domain.Classification `json:"classification"`
	Amount         decimal.Decimal       `json:"amount"`
	Currency       string                `json:"currency"`
	Status         domain.EntryStatus    `json:"status"`
	Metadata       map[string]any        `json:"metadata"`
	Note           *string               `json:"note,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	SettledAt      *time.Time            `json:"settledAt,omitempty"`
}

// MetaString returns a string metadata value or "".
func (e LedgerEntry) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata[key].(string)
	return s
}

// LedgerFilter narrows ListForAccount results. Zero values disable a filter.
type LedgerFilter struct {
	From           *time.Time
	To             *time.Time
	Asset          string
	Status         domain.EntryStatus
	Kind           domain.EntryKind
	Classification domain.Classification
	Limit          int
	Offset         int
}
