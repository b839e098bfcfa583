package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store      *memory.Store
	accounts   *AccountService
	movement   *MovementService
	settlement *SettlementService
	products   *ProductService
	reporting  *ReportingService
	admin      Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	return &testEnv{
		store:      store,
		accounts:   NewAccountService(store),
		movement:   NewMovementService(store),
		settlement: NewSettlementService(store),
		products:   NewProductService(store),
		reporting:  NewReportingService(store),
		admin:      Actor{ID: uuid.New(), Privileged: true},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newAccount creates a user with an account and an empty bucket set.
func (e *testEnv) newAccount(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	name := uuid.NewString()[:8]
	user, err := e.accounts.CreateUser(ctx, "user-"+name, name+"@example.com", domain.RoleUser)
	require.NoError(t, err)
	created, err := e.accounts.CreateAccount(ctx, user.ID)
	require.NoError(t, err)
	return created.Account.ID
}

// fund credits a bucket through an approved deposit claim.
func (e *testEnv) fund(t *testing.T, accountID uuid.UUID, bucket domain.Bucket, amount string) {
	t.Helper()
	ctx := context.Background()
	entry, err := e.settlement.ClaimDeposit(ctx, accountID, DepositClaim{Bucket: bucket, Amount: dec(amount)})
	require.NoError(t, err)
	_, err = e.settlement.Approve(ctx, e.admin, entry.ID)
	require.NoError(t, err)
}

func (e *testEnv) newProduct(t *testing.T, minimum string) uuid.UUID {
	t.Helper()
	p, err := e.products.Upsert(context.Background(), e.admin, ProductInput{
		Name:     fmt.Sprintf("Growth %s", uuid.NewString()[:4]),
		Strategy: "balanced",
		Minimum:  dec(minimum),
		Active:   true,
	})
	require.NoError(t, err)
	return p.ID
}

func (e *testEnv) buckets(t *testing.T, accountID uuid.UUID) models.BucketSet {
	t.Helper()
	b, err := e.accounts.GetBuckets(context.Background(), accountID)
	require.NoError(t, err)
	return *b
}

func (e *testEnv) entries(t *testing.T, accountID uuid.UUID, class domain.Classification) []models.LedgerEntry {
	t.Helper()
	items, err := e.accounts.GetStatement(context.Background(), accountID, models.LedgerFilter{Classification: class, Limit: 500})
	require.NoError(t, err)
	return items
}

// requireInvariants checks non-negativity, closure and the investments mirror.
func (e *testEnv) requireInvariants(t *testing.T, accountID uuid.UUID) {
	t.Helper()
	b := e.buckets(t, accountID)
	for _, bucket := range domain.Buckets {
		v, _ := b.Get(bucket)
		require.False(t, v.IsNegative(), "bucket %s is negative: %s", bucket, v)
	}

	positions, err := e.accounts.ListPositions(context.Background(), accountID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, p := range positions {
		require.False(t, p.Balance.IsNegative(), "position %s balance negative", p.ID)
		if p.Balance.IsZero() {
			require.Equal(t, domain.PositionClosed, p.Status)
		} else {
			require.Equal(t, domain.PositionActive, p.Status)
		}
		sum = sum.Add(p.Balance)
	}
	require.True(t, sum.Equal(b.Investments), "investments %s != positions %s", b.Investments, sum)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
