package domain

import "strings"

// ReferenceCurrency is the internal unit every bucket and position is denominated in.
const ReferenceCurrency = "USD"

// AmountScale is the number of fractional digits persisted for any amount.
const AmountScale = 8

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Bucket names one balance slot of an account's bucket set.
type Bucket string

const (
	BucketCash        Bucket = "cash"
	BucketCrypto      Bucket = "crypto"
	BucketStaking     Bucket = "staking"
	BucketInvestments Bucket = "investments"
	BucketEarn        Bucket = "earn"
)

// Buckets lists every recognized bucket in display order.
var Buckets = []Bucket{BucketCash, BucketCrypto, BucketStaking, BucketInvestments, BucketEarn}

// ParseBucket normalizes a user supplied bucket name.
func ParseBucket(name string) (Bucket, bool) {
	b := Bucket(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Buckets {
		if b == known {
			return b, true
		}
	}
	return b, false
}

// Swappable reports whether the bucket can take part in a swap or a settlement claim.
// The investments bucket is managed through positions only.
func (b Bucket) Swappable() bool {
	switch b {
	case BucketCash, BucketCrypto, BucketStaking, BucketEarn:
		return true
	default:
		return false
	}
}

// FundsInvestments reports whether the bucket may fund a position.
func (b Bucket) FundsInvestments() bool {
	return b == BucketCash || b == BucketCrypto
}

// ReceivesWithdrawals reports whether the bucket may receive position proceeds.
func (b Bucket) ReceivesWithdrawals() bool {
	return b == BucketCash || b == BucketCrypto || b == BucketEarn
}

// EntryKind is the coarse direction of a ledger entry.
type EntryKind string

const (
	KindDeposit  EntryKind = "DEPOSIT"
	KindWithdraw EntryKind = "WITHDRAW"
	KindTransfer EntryKind = "TRANSFER"
)

// Classification records the intent behind a ledger entry.
type Classification string

const (
	ClassSwap              Classification = "SWAP"
	ClassInvestStart       Classification = "INVEST_START"
	ClassInvestTopUp       Classification = "INVEST_TOPUP"
	ClassInvestWithdraw    Classification = "INVEST_WITHDRAW"
	ClassInvestWithdrawAll Classification = "INVEST_WITHDRAW_ALL"
	ClassInvestPnL         Classification = "INVEST_PNL"
	ClassDeposit           Classification = "DEPOSIT"
	ClassWithdrawal        Classification = "WITHDRAWAL"
)

// EntryStatus is the settlement state of a ledger entry.
type EntryStatus string

const (
	StatusPending EntryStatus = "PENDING"
	StatusSuccess EntryStatus = "SUCCESS"
	StatusFailed  EntryStatus = "FAILED"
)

// PositionStatus is the lifecycle state of an investment position.
type PositionStatus string

const (
	PositionActive PositionStatus = "active"
	PositionClosed PositionStatus = "closed"
)

// Ledger metadata keys shared by writers and readers.
const (
	MetaFromBucket    = "from_bucket"
	MetaToBucket      = "to_bucket"
	MetaSourceBucket  = "source_bucket"
	MetaTargetBucket  = "target_bucket"
	MetaBucket        = "bucket"
	MetaAmount        = "amount"
	MetaRequested     = "requested"
	MetaApplied       = "applied"
	MetaPositionID    = "position_id"
	MetaProductID     = "product_id"
	MetaAsset         = "asset"
	MetaReceiptURL    = "receipt_url"
	MetaReference     = "reference"
	MetaDestination   = "destination"
	MetaSettlement    = "settlement"
	MetaBalanceBefore = "balance_before"
	MetaBalanceAfter  = "balance_after"
)
