// Package report renders allocations, balances and series as Markdown.
//
// Amounts stay unrounded float64 everywhere else; this package is the only
// place they are rounded, to the minor unit of the display currency.
package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// currency returns the currency for code. Unknown codes get a
// two-decimal currency named after the code.
func currency(code string) money.Currency {
	// money.New never returns a nil currency, GetCurrency does.
	return *money.New(0, code).Currency()
}

// Round rounds amount half away from zero to the currency's minor unit.
func Round(amount float64, code string) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(int32(currency(code).Fraction))
}

// Format renders amount in the currency's notation, e.g. "€25.00".
func Format(amount float64, code string) string {
	cur := currency(code)
	minor := Round(amount, code).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// Signed renders amount with an explicit sign, or "-" for zero.
func Signed(amount float64, code string) string {
	r := Round(amount, code)
	switch {
	case r.IsZero():
		return "-"
	case r.IsPositive():
		return "+" + Format(amount, code)
	default:
		return Format(amount, code)
	}
}
