package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedErrors are precondition failures a random operation may hit.
var expectedErrors = []error{
	models.ErrInsufficientFunds,
	models.ErrSameBucket,
	models.ErrBucketManaged,
	models.ErrInvalidSourceBucket,
	models.ErrInvalidTargetBucket,
	models.ErrBelowMinimum,
	models.ErrInvalidAmount,
}

func isExpected(err error) bool {
	for _, e := range expectedErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func TestRandomOperationsPreserveInvariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "5000")
	env.fund(t, accountID, domain.BucketCrypto, "2500")
	productID := env.newProduct(t, "10")

	rng := rand.New(rand.NewSource(42))
	amount := func(max int64) decimal.Decimal {
		return decimal.New(rng.Int63n(max*100)+1, -2)
	}
	var positions []uuid.UUID

	for step := 0; step < 400; step++ {
		before := env.buckets(t, accountID)
		entriesBefore := len(env.entries(t, accountID, ""))

		var (
			res *MovementResult
			err error
		)
		switch op := rng.Intn(6); {
		case op == 0:
			from := domain.Buckets[rng.Intn(len(domain.Buckets))]
			to := domain.Buckets[rng.Intn(len(domain.Buckets))]
			res, err = env.movement.Swap(ctx, accountID, from, to, amount(1500))
			if err == nil {
				assert.True(t, before.Total().Equal(res.Buckets.Total()), "swap changed total at step %d", step)
			}
		case op == 1 || len(positions) == 0:
			source := domain.Buckets[rng.Intn(len(domain.Buckets))]
			res, err = env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: source, ProductID: productID, Amount: amount(800)})
			if err == nil {
				positions = append(positions, res.Position.ID)
				assert.True(t, before.Total().Equal(res.Buckets.Total()), "invest changed total at step %d", step)
			}
		case op == 2:
			source := []domain.Bucket{domain.BucketCash, domain.BucketCrypto}[rng.Intn(2)]
			res, err = env.movement.InvestTopUp(ctx, accountID, positions[rng.Intn(len(positions))], source, amount(500))
			if err == nil {
				have, _ := before.Get(source)
				now, _ := res.Buckets.Get(source)
				assert.True(t, have.Sub(now).Equal(res.Applied))
				assert.True(t, res.Buckets.Investments.Sub(before.Investments).Equal(res.Applied))
			}
		case op == 3:
			target := domain.Buckets[rng.Intn(len(domain.Buckets))]
			res, err = env.movement.InvestWithdraw(ctx, accountID, positions[rng.Intn(len(positions))], target, amount(400))
		case op == 4:
			res, err = env.movement.InvestWithdrawAll(ctx, accountID, positions[rng.Intn(len(positions))], domain.BucketEarn)
		default:
			delta := amount(600)
			if rng.Intn(2) == 0 {
				delta = delta.Neg()
			}
			res, err = env.movement.InvestPnLAdjust(ctx, accountID, positions[rng.Intn(len(positions))], delta, env.admin)
		}

		entriesAfter := len(env.entries(t, accountID, ""))
		if err != nil {
			require.True(t, isExpected(err), "step %d: unexpected error %v", step, err)
			require.Equal(t, entriesBefore, entriesAfter, "failed step %d wrote an entry", step)
			require.Equal(t, before.Total().String(), env.buckets(t, accountID).Total().String())
		} else if res.Entry != nil {
			require.Equal(t, entriesBefore+1, entriesAfter, "step %d", step)
		} else {
			require.Equal(t, entriesBefore, entriesAfter, "no-op step %d", step)
		}
		env.requireInvariants(t, accountID)
	}
}

func TestConcurrentOperationsOnOneAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "1000")
	productID := env.newProduct(t, "1")
	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("100")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = env.movement.Swap(ctx, accountID, domain.BucketCash, domain.BucketCrypto, dec("7"))
		}()
		go func() {
			defer wg.Done()
			_, _ = env.movement.InvestTopUp(ctx, accountID, start.Position.ID, domain.BucketCrypto, dec("3"))
		}()
		go func() {
			defer wg.Done()
			_, _ = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("-2"), env.admin)
		}()
	}
	wg.Wait()

	env.requireInvariants(t, accountID)
	b := env.buckets(t, accountID)
	p, err := env.accounts.GetPosition(ctx, start.Position.ID)
	require.NoError(t, err)
	// Only PnL changes the total; everything else moves value between buckets.
	requireDecimal(t, dec("1000").Add(p.PnL).String(), b.Total())
}

func TestOperationsOnDifferentAccountsDoNotBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newAccount(t)
	b := env.newAccount(t)
	env.fund(t, b, domain.BucketCash, "10")

	// A transaction on a holds its row lock while b is mutated.
	err := env.store.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := (BucketStore{}).Lock(ctx, q, a); err != nil {
			return err
		}
		_, err := env.movement.Swap(ctx, b, domain.BucketCash, domain.BucketEarn, dec("4"))
		return err
	})
	require.NoError(t, err)
	requireDecimal(t, "4", env.buckets(t, b).Earn)
}
