// Package money holds the fixed-precision arithmetic shared by the ledger,
// accrual and returns engines.
//
// Monetary values travel as decimal.Decimal and are converted to integer
// minor units (cents, yen, fils) before being accumulated. Share quantities
// are stored as integer micro-shares. Rounding only happens when a value is
// converted to one of those integer representations.
package money

import (
	"fmt"
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
)

const (
	// DivisionPrecision is the number of decimal places kept by Div.
	DivisionPrecision = 40

	// MicroShareDecimals is the fixed granularity of holdings quantities.
	MicroShareDecimals = 6

	// DefaultDecimals is used for currencies missing from every lookup table.
	DefaultDecimals = 2
)

// currencyDecimals overrides the ISO table for currencies whose minor unit is
// not two decimal places. Checked before go-money.
var currencyDecimals = map[string]int{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// CurrencyDecimals returns the number of minor-unit decimal places for an
// ISO-4217 code.
func CurrencyDecimals(code string) int {
	code = strings.ToUpper(strings.TrimSpace(code))
	if places, ok := currencyDecimals[code]; ok {
		return places
	}
	if c := gomoney.GetCurrency(code); c != nil {
		return c.Fraction
	}
	return DefaultDecimals
}

// ToMinorUnits rounds d half away from zero to places decimals and returns
// it as an integer count of minor units.
func ToMinorUnits(d decimal.Decimal, places int) (int64, error) {
	scaled := d.Round(int32(places)).Shift(int32(places))
	if scaled.LessThan(minInt64) || scaled.GreaterThan(maxInt64) {
		return 0, &apperrors.InvariantViolation{
			Op:      "to_minor_units",
			Message: fmt.Sprintf("%s does not fit in int64 minor units at %d places", d.String(), places),
		}
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts an integer amount of minor units back to major units.
func FromMinorUnits(n int64, places int) decimal.Decimal {
	return decimal.New(n, -int32(places))
}

// ToMicroShares converts a share quantity to integer micro-shares.
func ToMicroShares(q decimal.Decimal) (int64, error) {
	return ToMinorUnits(q, MicroShareDecimals)
}

// FromMicroShares converts micro-shares back to a share quantity.
func FromMicroShares(n int64) decimal.Decimal {
	return FromMinorUnits(n, MicroShareDecimals)
}

// Div divides keeping DivisionPrecision decimal places. Callers must check
// for a zero divisor.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}

// AddMinor adds two minor-unit amounts, failing instead of wrapping around.
func AddMinor(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, &apperrors.InvariantViolation{
			Op:      "add_minor",
			Message: fmt.Sprintf("minor-unit overflow adding %d and %d", a, b),
		}
	}
	return sum, nil
}

// MulMinor values a micro-share position at price and rounds the product to
// minor units.
func MulMinor(microShares int64, price decimal.Decimal, places int) (int64, error) {
	return ToMinorUnits(FromMicroShares(microShares).Mul(price), places)
}

// Clamp restricts d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
