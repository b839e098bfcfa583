package service

import (
	"context"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSwapMovesFundsAndRecordsZeroNetEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "1000")

	before := env.buckets(t, accountID).Total()
	res, err := env.movement.Swap(ctx, accountID, domain.BucketCash, domain.BucketCrypto, dec("400"))
	require.NoError(t, err)

	requireDecimal(t, "600", res.Buckets.Cash)
	requireDecimal(t, "400", res.Buckets.Crypto)
	requireDecimal(t, before.String(), res.Buckets.Total())

	swaps := env.entries(t, accountID, domain.ClassSwap)
	require.Len(t, swaps, 1)
	e := swaps[0]
	assert.Equal(t, domain.KindTransfer, e.Kind)
	assert.True(t, e.Amount.IsZero())
	assert.Equal(t, domain.StatusSuccess, e.Status)
	assert.Equal(t, "cash", e.MetaString(domain.MetaFromBucket))
	assert.Equal(t, "crypto", e.MetaString(domain.MetaToBucket))
	assert.Equal(t, "400", e.MetaString(domain.MetaAmount))
	assert.Equal(t, "Swapped $400.00 from cash to crypto", e.Title)
}

func TestSwapRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "100")

	tests := []struct {
		name    string
		from    domain.Bucket
		to      domain.Bucket
		amount  string
		wantErr error
	}{
		{"same bucket", domain.BucketCash, domain.BucketCash, "10", models.ErrSameBucket},
		{"investments source", domain.BucketInvestments, domain.BucketCash, "10", models.ErrBucketManaged},
		{"investments target", domain.BucketCash, domain.BucketInvestments, "10", models.ErrBucketManaged},
		{"unknown bucket", domain.Bucket("savings"), domain.BucketCash, "10", models.ErrUnknownBucket},
		{"zero amount", domain.BucketCash, domain.BucketCrypto, "0", models.ErrInvalidAmount},
		{"negative amount", domain.BucketCash, domain.BucketCrypto, "-5", models.ErrInvalidAmount},
		{"too many decimals", domain.BucketCash, domain.BucketCrypto, "0.000000001", models.ErrInvalidAmount},
		{"beyond numeric precision", domain.BucketEarn, domain.BucketStaking, "100000000000000000000", models.ErrInvalidAmount},
		{"insufficient", domain.BucketCash, domain.BucketCrypto, "100.01", models.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.movement.Swap(ctx, accountID, tt.from, tt.to, dec(tt.amount))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	b := env.buckets(t, accountID)
	requireDecimal(t, "100", b.Cash)
	requireDecimal(t, "0", b.Crypto)
	assert.Empty(t, env.entries(t, accountID, domain.ClassSwap))
}

func TestSwapAcceptsMixedCaseBucketNames(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketStaking, "50")

	res, err := env.movement.Swap(context.Background(), accountID, "Staking", " EARN ", dec("20"))
	require.NoError(t, err)
	requireDecimal(t, "30", res.Buckets.Staking)
	requireDecimal(t, "20", res.Buckets.Earn)
}

func TestSwapUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.movement.Swap(context.Background(), uuid.New(), domain.BucketCash, domain.BucketCrypto, dec("1"))
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestInvestStartCreatesPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "600")
	productID := env.newProduct(t, "100")

	res, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{
		Source:    domain.BucketCash,
		ProductID: productID,
		Amount:    dec("500"),
	})
	require.NoError(t, err)

	requireDecimal(t, "100", res.Buckets.Cash)
	requireDecimal(t, "500", res.Buckets.Investments)
	require.NotNil(t, res.Position)
	requireDecimal(t, "500", res.Position.Principal)
	requireDecimal(t, "500", res.Position.Balance)
	requireDecimal(t, "0", res.Position.PnL)
	assert.Equal(t, domain.PositionActive, res.Position.Status)
	assert.Equal(t, "balanced", res.Position.Strategy)
	assert.Equal(t, domain.ReferenceCurrency, res.Position.Currency)

	require.NotNil(t, res.Entry)
	assert.Equal(t, domain.KindTransfer, res.Entry.Kind)
	assert.Equal(t, domain.ClassInvestStart, res.Entry.Classification)
	requireDecimal(t, "-500", res.Entry.Amount)
	assert.Equal(t, res.Position.ID.String(), res.Entry.MetaString(domain.MetaPositionID))
	assert.Equal(t, "cash", res.Entry.MetaString(domain.MetaSourceBucket))
	env.requireInvariants(t, accountID)
}

func TestInvestStartPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "150")
	env.fund(t, accountID, domain.BucketStaking, "500")
	productID := env.newProduct(t, "100")

	inactive, err := env.products.Upsert(ctx, env.admin, ProductInput{Name: "Closed fund", Minimum: dec("1"), Active: false})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     InvestStartRequest
		wantErr error
	}{
		{"staking cannot fund", InvestStartRequest{Source: domain.BucketStaking, ProductID: productID, Amount: dec("200")}, models.ErrInvalidSourceBucket},
		{"earn cannot fund", InvestStartRequest{Source: domain.BucketEarn, ProductID: productID, Amount: dec("200")}, models.ErrInvalidSourceBucket},
		{"unknown source", InvestStartRequest{Source: "wallet", ProductID: productID, Amount: dec("200")}, models.ErrUnknownBucket},
		{"below minimum", InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("99.99")}, models.ErrBelowMinimum},
		{"missing product", InvestStartRequest{Source: domain.BucketCash, ProductID: uuid.New(), Amount: dec("120")}, models.ErrProductNotFound},
		{"inactive product", InvestStartRequest{Source: domain.BucketCash, ProductID: inactive.ID, Amount: dec("120")}, models.ErrProductNotFound},
		{"insufficient", InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("151")}, models.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.movement.InvestStart(ctx, accountID, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	positions, err := env.accounts.ListPositions(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, positions)
	requireDecimal(t, "150", env.buckets(t, accountID).Cash)
	env.requireInvariants(t, accountID)
}

func TestInvestTopUpReopensClosedPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCrypto, "1000")
	productID := env.newProduct(t, "50")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCrypto, ProductID: productID, Amount: dec("200")})
	require.NoError(t, err)
	positionID := start.Position.ID

	_, err = env.movement.InvestWithdrawAll(ctx, accountID, positionID, domain.BucketCash)
	require.NoError(t, err)

	res, err := env.movement.InvestTopUp(ctx, accountID, positionID, domain.BucketCrypto, dec("75"))
	require.NoError(t, err)
	assert.Equal(t, domain.PositionActive, res.Position.Status)
	requireDecimal(t, "275", res.Position.Principal)
	requireDecimal(t, "75", res.Position.Balance)
	requireDecimal(t, "75", res.Buckets.Investments)
	requireDecimal(t, "725", res.Buckets.Crypto)
	requireDecimal(t, "200", res.Buckets.Cash)

	assert.Equal(t, domain.ClassInvestTopUp, res.Entry.Classification)
	requireDecimal(t, "-75", res.Entry.Amount)
	env.requireInvariants(t, accountID)

	_, err = env.movement.InvestTopUp(ctx, accountID, positionID, domain.BucketCrypto, dec("10"))
	require.ErrorIs(t, err, models.ErrBelowMinimum)
}

func TestInvestTopUpKeepsMinimumOfInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "1000")
	productID := env.newProduct(t, "100")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("100")})
	require.NoError(t, err)

	_, err = env.products.Upsert(ctx, env.admin, ProductInput{ID: productID, Name: "Retired", Minimum: dec("100"), Active: false})
	require.NoError(t, err)
	_, err = env.movement.InvestTopUp(ctx, accountID, start.Position.ID, domain.BucketCash, dec("10"))
	require.ErrorIs(t, err, models.ErrBelowMinimum)

	res, err := env.movement.InvestTopUp(ctx, accountID, start.Position.ID, domain.BucketCash, dec("100"))
	require.NoError(t, err)
	requireDecimal(t, "200", res.Position.Balance)
}

func TestInvestOperationsCheckOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newAccount(t)
	other := env.newAccount(t)
	env.fund(t, owner, domain.BucketCash, "500")
	env.fund(t, other, domain.BucketCash, "500")
	productID := env.newProduct(t, "10")

	start, err := env.movement.InvestStart(ctx, owner, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("100")})
	require.NoError(t, err)

	_, err = env.movement.InvestTopUp(ctx, other, start.Position.ID, domain.BucketCash, dec("50"))
	require.ErrorIs(t, err, models.ErrPositionNotOwnedByAccount)
	_, err = env.movement.InvestWithdraw(ctx, other, start.Position.ID, domain.BucketCash, dec("50"))
	require.ErrorIs(t, err, models.ErrPositionNotOwnedByAccount)
	_, err = env.movement.InvestWithdrawAll(ctx, other, uuid.New(), domain.BucketCash)
	require.ErrorIs(t, err, models.ErrPositionNotFound)

	requireDecimal(t, "500", env.buckets(t, other).Cash)
	env.requireInvariants(t, owner)
	env.requireInvariants(t, other)
}

func TestInvestWithdrawRecordsPositiveEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "500")
	productID := env.newProduct(t, "10")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("300")})
	require.NoError(t, err)

	res, err := env.movement.InvestWithdraw(ctx, accountID, start.Position.ID, domain.BucketEarn, dec("120"))
	require.NoError(t, err)
	requireDecimal(t, "180", res.Position.Balance)
	requireDecimal(t, "300", res.Position.Principal)
	assert.Equal(t, domain.PositionActive, res.Position.Status)
	requireDecimal(t, "180", res.Buckets.Investments)
	requireDecimal(t, "120", res.Buckets.Earn)

	assert.Equal(t, domain.KindWithdraw, res.Entry.Kind)
	assert.Equal(t, domain.ClassInvestWithdraw, res.Entry.Classification)
	requireDecimal(t, "120", res.Entry.Amount)
	assert.Equal(t, "earn", res.Entry.MetaString(domain.MetaTargetBucket))
	assert.Equal(t, "120", res.Entry.MetaString(domain.MetaRequested))
	assert.Equal(t, "120", res.Entry.MetaString(domain.MetaApplied))

	tests := []struct {
		name    string
		target  domain.Bucket
		amount  string
		wantErr error
	}{
		{"staking target", domain.BucketStaking, "10", models.ErrInvalidTargetBucket},
		{"investments target", domain.BucketInvestments, "10", models.ErrInvalidTargetBucket},
		{"unknown target", "vault", "10", models.ErrUnknownBucket},
		{"zero", domain.BucketCash, "0", models.ErrInvalidAmount},
		{"more than balance", domain.BucketCash, "180.00000001", models.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.movement.InvestWithdraw(ctx, accountID, start.Position.ID, tt.target, dec(tt.amount))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	env.requireInvariants(t, accountID)
}

func TestInvestWithdrawAllScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "400")
	productID := env.newProduct(t, "100")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("300")})
	require.NoError(t, err)
	requireDecimal(t, "100", start.Buckets.Cash)

	res, err := env.movement.InvestWithdrawAll(ctx, accountID, start.Position.ID, domain.BucketCash)
	require.NoError(t, err)
	requireDecimal(t, "400", res.Buckets.Cash)
	requireDecimal(t, "0", res.Buckets.Investments)
	requireDecimal(t, "0", res.Position.Balance)
	assert.Equal(t, domain.PositionClosed, res.Position.Status)

	entries := env.entries(t, accountID, domain.ClassInvestWithdrawAll)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.KindWithdraw, entries[0].Kind)
	requireDecimal(t, "300", entries[0].Amount)

	_, err = env.movement.InvestWithdrawAll(ctx, accountID, start.Position.ID, domain.BucketCash)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Len(t, env.entries(t, accountID, domain.ClassInvestWithdrawAll), 1)
	env.requireInvariants(t, accountID)
}

func TestInvestPnLAdjustClampsLoss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "600")
	productID := env.newProduct(t, "100")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("500")})
	require.NoError(t, err)

	res, err := env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("-700"), env.admin)
	require.NoError(t, err)
	requireDecimal(t, "-500", res.Applied)
	requireDecimal(t, "0", res.Position.Balance)
	requireDecimal(t, "-500", res.Position.PnL)
	assert.Equal(t, domain.PositionClosed, res.Position.Status)
	requireDecimal(t, "0", res.Buckets.Investments)
	requireDecimal(t, "100", res.Buckets.Cash)

	require.NotNil(t, res.Entry)
	assert.Equal(t, domain.KindWithdraw, res.Entry.Kind)
	assert.Equal(t, domain.ClassInvestPnL, res.Entry.Classification)
	requireDecimal(t, "500", res.Entry.Amount)
	assert.Equal(t, "-700", res.Entry.MetaString(domain.MetaRequested))
	assert.Equal(t, "-500", res.Entry.MetaString(domain.MetaApplied))
	env.requireInvariants(t, accountID)

	audit := env.store.AuditLog()
	require.NotEmpty(t, audit)
	last := audit[len(audit)-1]
	assert.Equal(t, "investment_position", last.EntityType)
	assert.Equal(t, "pnl_adjusted", last.Action)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, env.admin.ID, *last.ActorID)
}

func TestInvestPnLAdjustProfitAndNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "200")
	productID := env.newProduct(t, "100")

	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("200")})
	require.NoError(t, err)

	res, err := env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("25.5"), env.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.KindDeposit, res.Entry.Kind)
	requireDecimal(t, "25.5", res.Entry.Amount)
	requireDecimal(t, "225.5", res.Position.Balance)
	requireDecimal(t, "225.5", res.Buckets.Investments)
	assert.Equal(t, "Profit of $25.50 on "+start.Position.Name, res.Entry.Title)

	before := len(env.entries(t, accountID, ""))
	res, err = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("0"), env.admin)
	require.NoError(t, err)
	assert.Nil(t, res.Entry)
	assert.True(t, res.Applied.IsZero())
	assert.Len(t, env.entries(t, accountID, ""), before)

	// A loss on an already closed position applies nothing.
	_, err = env.movement.InvestWithdrawAll(ctx, accountID, start.Position.ID, domain.BucketCash)
	require.NoError(t, err)
	before = len(env.entries(t, accountID, ""))
	res, err = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("-10"), env.admin)
	require.NoError(t, err)
	assert.Nil(t, res.Entry)
	assert.Len(t, env.entries(t, accountID, ""), before)
	env.requireInvariants(t, accountID)
}

func TestInvestPnLAdjustGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "200")
	productID := env.newProduct(t, "100")
	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("150")})
	require.NoError(t, err)

	_, err = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("10"), Actor{ID: uuid.New()})
	require.ErrorIs(t, err, models.ErrNotPrivileged)

	_, err = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("100000000000000000000"), env.admin)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	p, err := env.accounts.GetPosition(ctx, start.Position.ID)
	require.NoError(t, err)
	requireDecimal(t, "150", p.Balance)
}

// breakMirror drains the investments bucket behind the engine's back.
func breakMirror(t *testing.T, env *testEnv, accountID uuid.UUID, delta string) {
	t.Helper()
	_, err := env.store.Queries().IncrementBucket(context.Background(), repository.IncrementBucketParams{
		AccountID: accountID,
		Bucket:    domain.BucketInvestments,
		Delta:     dec(delta),
	})
	require.NoError(t, err)
}

func TestNegativeWalletInvariantRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "500")
	productID := env.newProduct(t, "100")
	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("500")})
	require.NoError(t, err)

	breakMirror(t, env, accountID, "-450")
	entriesBefore := len(env.entries(t, accountID, ""))

	_, err = env.movement.InvestWithdraw(ctx, accountID, start.Position.ID, domain.BucketCash, dec("100"))
	require.ErrorIs(t, err, models.ErrNegativeWalletInvariant)

	_, err = env.movement.InvestPnLAdjust(ctx, accountID, start.Position.ID, dec("-100"), env.admin)
	require.ErrorIs(t, err, models.ErrNegativeWalletInvariant)

	p, err := env.accounts.GetPosition(ctx, start.Position.ID)
	require.NoError(t, err)
	requireDecimal(t, "500", p.Balance)
	requireDecimal(t, "0", p.PnL)
	b := env.buckets(t, accountID)
	requireDecimal(t, "50", b.Investments)
	requireDecimal(t, "0", b.Cash)
	assert.Len(t, env.entries(t, accountID, ""), entriesBefore)
}

func TestMirrorDriftIsReportedNotFailed(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	env := newTestEnv(t)
	ctx := context.Background()
	accountID := env.newAccount(t)
	env.fund(t, accountID, domain.BucketCash, "500")
	productID := env.newProduct(t, "100")
	start, err := env.movement.InvestStart(ctx, accountID, InvestStartRequest{Source: domain.BucketCash, ProductID: productID, Amount: dec("200")})
	require.NoError(t, err)
	require.Zero(t, logs.Len())

	breakMirror(t, env, accountID, "5")
	_, err = env.movement.InvestTopUp(ctx, accountID, start.Position.ID, domain.BucketCash, dec("100"))
	require.NoError(t, err)

	alerts := logs.FilterMessage("integrity alert: investments mirror drift").All()
	require.Len(t, alerts, 1)
	assert.Equal(t, accountID.String(), alerts[0].ContextMap()["account_id"])
	assert.Equal(t, "integrity", alerts[0].ContextMap()["alert"])
}
