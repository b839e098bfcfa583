package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)

	empty, err := env.reporting.Allocation(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, empty.Items, len(domain.Buckets))
	for _, item := range empty.Items {
		assert.True(t, item.Share.IsZero())
	}

	env.fund(t, accountID, domain.BucketCash, "600")
	env.fund(t, accountID, domain.BucketStaking, "200")
	productID := env.newProduct(t, "100")
	_, err = env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("200")})
	require.NoError(t, err)

	report, err := env.reporting.Allocation(ctx, accountID)
	require.NoError(t, err)
	requireDecimal(t, "800", report.Total)
	assert.Equal(t, "$800.00", report.Display)

	shares := map[domain.Bucket]string{}
	for _, item := range report.Items {
		shares[item.Bucket] = item.Share.String()
	}
	assert.Equal(t, "0.5", shares[domain.BucketCash])
	assert.Equal(t, "0.25", shares[domain.BucketStaking])
	assert.Equal(t, "0.25", shares[domain.BucketInvestments])
	assert.Equal(t, "0", shares[domain.BucketEarn])

	_, err = env.reporting.Allocation(ctx, uuid.New())
	require.Error(t, err)
}

func TestFlowsFollowSignConvention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "1000")
	productID := env.newProduct(t, "100")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("400")})
	require.NoError(t, err)
	_, err = env.movement.Swap(ctx, accountID, domain.BucketCash, domain.BucketCrypto, dec("100"))
	require.NoError(t, err)
	_, err = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("-30"), env.admin)
	require.NoError(t, err)
	_, err = env.movement.InvestWithdraw(ctx, accountID, start.Position.ID, domain.BucketCash, dec("150"))
	require.NoError(t, err)
	_, err = env.settlement.ClaimDeposit(ctx, accountID, DepositClaim{Bucket: domain.BucketCash, Amount: dec("999")})
	require.NoError(t, err)

	report, err := env.reporting.Flows(ctx, accountID, nil, nil)
	require.NoError(t, err)
	require.Len(t, report.Days, 1)
	day := report.Days[0]
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), day.Date)
	// Pending claims are excluded.
	requireDecimal(t, "1150", day.Inflow)
	requireDecimal(t, "400", day.Outflow)
	requireDecimal(t, "750", day.Net)
	requireDecimal(t, "-30", day.PnL)
	requireDecimal(t, "-30", report.PnL)

	from := time.Now().Add(time.Hour)
	to := time.Now()
	_, err = env.reporting.Flows(ctx, accountID, &from, &to)
	require.Error(t, err)
}
