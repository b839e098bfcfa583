package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// maxAmount is the exclusive magnitude bound of NUMERIC(28, 8): 20 integer digits.
var maxAmount = decimal.New(1, 28-AmountScale)

// InRange reports whether d fits the persisted precision and scale. Sign is
// not checked.
func InRange(d decimal.Decimal) bool {
	return d.Abs().LessThan(maxAmount) && d.Equal(d.Truncate(AmountScale))
}

// ValidAmount reports whether d is strictly positive and fits the persisted
// precision and scale.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && InRange(d)
}

// FormatAmount renders a decimal amount with the currency's symbol and minor units,
// e.g. 1234.5 USD becomes "$1,234.50". Unknown currencies fall back to "1234.50 XYZ".
//
// The digits come from the decimal itself, so amounts beyond int64 minor units
// render exactly; go-money supplies the currency's template and separators.
func FormatAmount(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}

	rounded := amount.Round(int32(cur.Fraction))
	whole, frac, _ := strings.Cut(rounded.Abs().StringFixed(int32(cur.Fraction)), ".")
	s := groupThousands(whole, cur.Thousand)
	if cur.Fraction > 0 {
		s += cur.Decimal + frac
	}
	s = strings.Replace(cur.Template, "1", s, 1)
	s = strings.Replace(s, "$", cur.Grapheme, 1)
	if rounded.IsNegative() {
		s = "-" + s
	}
	return s
}

// FormatUSD is FormatAmount in the reference currency.
func FormatUSD(amount decimal.Decimal) string {
	return FormatAmount(amount, ReferenceCurrency)
}

func groupThousands(digits, sep string) string {
	if sep == "" {
		return digits
	}
	for i := len(digits) - 3; i > 0; i -= 3 {
		digits = digits[:i] + sep + digits[i:]
	}
	return digits
}
