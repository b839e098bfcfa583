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

// BucketStore reads and mutates an account's bucket set. Mutations only run with
// a transaction-scoped Querier handed in by an engine operation.
type BucketStore struct{}

// Get reads the bucket set without taking a row lock.
func (BucketStore) Get(ctx context.Context, q repository.Querier, accountID uuid.UUID) (models.BucketSet, error) {
	b, err := q.GetBucketSet(ctx, accountID)
	if err != nil {
		return models.BucketSet{}, notFound(err, models.ErrAccountNotFound, "get bucket set")
	}
	return b, nil
}

// Lock reads the bucket set FOR UPDATE, serializing every operation on the account.
func (BucketStore) Lock(ctx context.Context, q repository.Querier, accountID uuid.UUID) (models.BucketSet, error) {
	b, err := q.GetBucketSetForUpdate(ctx, accountID)
	if err != nil {
		return models.BucketSet{}, notFound(err, models.ErrAccountNotFound, "lock bucket set")
	}
	return b, nil
}

// ApplyDelta adds delta to a single bucket as one atomic increment.
func (BucketStore) ApplyDelta(ctx context.Context, q repository.Querier, accountID uuid.UUID, bucket domain.Bucket, delta decimal.Decimal) (models.BucketSet, error) {
	if b, ok := domain.ParseBucket(string(bucket)); !ok || b != bucket {
		return models.BucketSet{}, fmt.Errorf("%w: %q", models.ErrUnknownBucket, bucket)
	}
	b, err := q.IncrementBucket(ctx, repository.IncrementBucketParams{
		AccountID: accountID,
		Bucket:    bucket,
		Delta:     delta,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BucketSet{}, fmt.Errorf("%w: %s cannot absorb %s", models.ErrInsufficientFunds, bucket, delta.String())
	}
	if err != nil {
		return models.BucketSet{}, fmt.Errorf("increment %s bucket: %w", bucket, err)
	}
	return b, nil
}

// parseBucket normalizes a caller supplied bucket name.
func parseBucket(name domain.Bucket) (domain.Bucket, error) {
	b, ok := domain.ParseBucket(string(name))
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownBucket, name)
	}
	return b, nil
}

// swappableBucket accepts cash, crypto, staking and earn. investments is
// reported as managed, anything else as unknown.
func swappableBucket(name domain.Bucket) (domain.Bucket, error) {
	b, err := parseBucket(name)
	if err != nil {
		return "", err
	}
	if !b.Swappable() {
		return "", fmt.Errorf("%w: %s", models.ErrBucketManaged, b)
	}
	return b, nil
}
