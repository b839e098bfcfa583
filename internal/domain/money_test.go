package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$400.00", FormatUSD(decimal.NewFromInt(400)))
	assert.Equal(t, "$1,234.50", FormatUSD(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "$0.01", FormatUSD(decimal.RequireFromString("0.005")))
	assert.Equal(t, "3.10 XYZ", FormatAmount(decimal.RequireFromString("3.1"), "XYZ"))
	assert.Equal(t, "-$12.30", FormatUSD(decimal.RequireFromString("-12.3")))
	assert.Equal(t, "\u20ac1,000.00", FormatAmount(decimal.NewFromInt(1000), "eur"))
}

func TestFormatAmountBeyondInt64MinorUnits(t *testing.T) {
	largest := decimal.RequireFromString("99999999999999999999.99999999")
	assert.Equal(t, "$100,000,000,000,000,000,000.00", FormatUSD(largest))
	assert.Equal(t, "$12,345,678,901,234,567,890.12", FormatUSD(decimal.RequireFromString("12345678901234567890.12")))
}

func TestValidAmount(t *testing.T) {
	assert.True(t, ValidAmount(decimal.RequireFromString("0.00000001")))
	assert.True(t, ValidAmount(decimal.NewFromInt(10)))
	assert.False(t, ValidAmount(decimal.Zero))
	assert.False(t, ValidAmount(decimal.NewFromInt(-1)))
	assert.False(t, ValidAmount(decimal.RequireFromString("0.000000001")))

	assert.True(t, ValidAmount(decimal.RequireFromString("99999999999999999999.99999999")))
	assert.False(t, ValidAmount(decimal.RequireFromString("100000000000000000000")))
	assert.False(t, InRange(decimal.RequireFromString("-100000000000000000000")))
	assert.True(t, InRange(decimal.RequireFromString("-5")))
}

func TestParseBucket(t *testing.T) {
	b, ok := ParseBucket(" Cash ")
	assert.True(t, ok)
	assert.Equal(t, BucketCash, b)

	_, ok = ParseBucket("savings")
	assert.False(t, ok)
}

func TestBucketGroups(t *testing.T) {
	cases := []struct {
		bucket   Bucket
		swap     bool
		funds    bool
		receives bool
	}{
		{BucketCash, true, true, true},
		{BucketCrypto, true, true, true},
		{BucketStaking, true, false, false},
		{BucketEarn, true, false, true},
		{BucketInvestments, false, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.bucket), func(t *testing.T) {
			assert.Equal(t, tc.swap, tc.bucket.Swappable())
			assert.Equal(t, tc.funds, tc.bucket.FundsInvestments())
			assert.Equal(t, tc.receives, tc.bucket.ReceivesWithdrawals())
		})
	}
}
