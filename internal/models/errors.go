package models

import "errors"

var (
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrUnknownBucket             = errors.New("unknown bucket")
	ErrSameBucket                = errors.New("source and destination bucket are the same")
	ErrBucketManaged             = errors.New("bucket is managed by investment positions")
	ErrInvalidSourceBucket       = errors.New("bucket cannot fund investments")
	ErrInvalidTargetBucket       = errors.New("bucket cannot receive investment withdrawals")
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrBelowMinimum              = errors.New("amount below product minimum")
	ErrProductNotFound           = errors.New("investment product not found")
	ErrPositionNotFound          = errors.New("position not found")
	ErrPositionNotOwnedByAccount = errors.New("position does not belong to account")
	ErrEntryNotFound             = errors.New("ledger entry not found")
	ErrAccountNotFound           = errors.New("account not found")
	ErrUserNotFound              = errors.New("user not found")
	ErrDuplicateReference        = errors.New("deposit reference already recorded")
	ErrInvalidStatusTransition   = errors.New("invalid status transition")
	ErrNegativeWalletInvariant   = errors.New("investments bucket would go negative")
	ErrNotPrivileged             = errors.New("operation requires elevated privilege")
)
