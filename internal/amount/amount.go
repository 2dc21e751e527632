// Package amount holds exact fixed-point token balances.
//
// An Amount is an on-chain integer mantissa scaled by 10^-decimals. It is
// backed by shopspring/decimal so no binary floating point is involved
// until a caller explicitly asks for Float64.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a raw on-chain value is not a
// non-negative base-10 integer.
var ErrInvalidAmount = errors.New("invalid amount")

var rawPattern = regexp.MustCompile(`^[0-9]+$`)

// Amount is an immutable token balance: mantissa / 10^scale.
type Amount struct {
	value decimal.Decimal
	scale uint8
}

// Parse builds an Amount from a raw integer string as returned by a
// token wallet and the token's decimal count.
func Parse(raw string, decimals uint8) (Amount, error) {
	if !rawPattern.MatchString(raw) {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	mantissa, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromBigInt(mantissa, decimals)
}

// FromBigInt builds an Amount from an integer mantissa. The mantissa is
// copied.
func FromBigInt(mantissa *big.Int, decimals uint8) (Amount, error) {
	if mantissa == nil || mantissa.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: negative or nil mantissa", ErrInvalidAmount)
	}
	return Amount{
		value: decimal.NewFromBigInt(new(big.Int).Set(mantissa), -int32(decimals)),
		scale: decimals,
	}, nil
}

// Zero returns a zero balance at the given scale.
func Zero(decimals uint8) Amount {
	return Amount{value: decimal.New(0, -int32(decimals)), scale: decimals}
}

// Scale returns the number of fractional digits of the token.
func (a Amount) Scale() uint8 {
	return a.scale
}

// IsZero reports whether the balance is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// Fixed renders the value with exactly places fractional digits,
// discarding the rest. Balances are never negative so this is a floor.
func (a Amount) Fixed(places int32) string {
	return a.value.Truncate(places).StringFixed(places)
}

// String renders the exact value without trailing zeros.
func (a Amount) String() string {
	return a.value.String()
}

// Float64 returns the nearest float64. Only meant for display and
// sorting; comparisons against thresholds use AtLeast.
func (a Amount) Float64() float64 {
	return a.value.InexactFloat64()
}

// AtLeast reports whether the balance is greater than or equal to
// threshold, compared exactly.
func (a Amount) AtLeast(threshold decimal.Decimal) bool {
	return a.value.GreaterThanOrEqual(threshold)
}

// MarshalJSON encodes the exact value as a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.value.String() + `"`), nil
}
