package amount

import (
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals uint8
		want     string
	}{
		{name: "zero balance", raw: "0", decimals: 9, want: "0"},
		{name: "1 nano with 9 decimals", raw: "1", decimals: 9, want: "0.000000001"},
		{name: "1 token (9 decimals)", raw: "1000000000", decimals: 9, want: "1"},
		{name: "1.5 tokens (6 decimals, USDT-like)", raw: "1500000", decimals: 6, want: "1.5"},
		{name: "0 decimals token", raw: "100", decimals: 0, want: "100"},
		{name: "leading zeros", raw: "000123", decimals: 2, want: "1.23"},
		{name: "large balance", raw: "123456789000000000000000000", decimals: 18, want: "123456789"},
		{name: "fractional with trailing zeros", raw: "1100000000000000000", decimals: 18, want: "1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.decimals, got.Scale())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []string{"", "-1", "+1", "1.5", "1e9", " 1", "0x10", "1_000", "abc"} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			_, err := Parse(raw, 9)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestFromBigInt(t *testing.T) {
	t.Run("rejects negative mantissa", func(t *testing.T) {
		_, err := FromBigInt(big.NewInt(-1), 9)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects nil mantissa", func(t *testing.T) {
		_, err := FromBigInt(nil, 9)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("preserves original big.Int", func(t *testing.T) {
		original := big.NewInt(1000000000)
		a, err := FromBigInt(original, 9)
		require.NoError(t, err)

		original.SetInt64(5)
		assert.Equal(t, "1", a.String())
		assert.Equal(t, "1.00", a.Fixed(2))
	})
}

func TestFixed(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals uint8
		places   int32
		want     string
	}{
		{name: "pads zeros", raw: "1500000", decimals: 6, places: 2, want: "1.50"},
		{name: "zero", raw: "0", decimals: 6, places: 2, want: "0.00"},
		{name: "truncates instead of rounding", raw: "1999999", decimals: 6, places: 2, want: "1.99"},
		{name: "below one cent", raw: "9999", decimals: 6, places: 2, want: "0.00"},
		{name: "integer token", raw: "42", decimals: 0, places: 2, want: "42.00"},
		{name: "zero places", raw: "1999999", decimals: 6, places: 0, want: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.raw, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Fixed(tt.places))
		})
	}
}

// floorCents computes floor(r / 10^d * 100) / 100 with integer arithmetic.
func floorCents(r *big.Int, d uint8) string {
	scaled := new(big.Int).Mul(r, big.NewInt(100))
	scaled.Quo(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d)), nil))
	whole, cents := new(big.Int).QuoRem(scaled, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s.%02d", whole.String(), cents.Int64())
}

func TestFixedMatchesIntegerFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(31), nil)

	for i := 0; i < 500; i++ {
		r := new(big.Int).Rand(rng, limit)
		d := uint8(rng.Intn(19))

		a, err := FromBigInt(r, d)
		require.NoError(t, err)
		assert.Equal(t, floorCents(r, d), a.Fixed(2), "raw=%s decimals=%d", r, d)
	}
}

func TestAtLeast(t *testing.T) {
	a, err := Parse("1500000", 6)
	require.NoError(t, err)

	assert.True(t, a.AtLeast(decimal.RequireFromString("1.5")), "inclusive bound")
	assert.True(t, a.AtLeast(decimal.NewFromInt(1)))
	assert.False(t, a.AtLeast(decimal.RequireFromString("1.500001")))
}

func TestAtLeastExactForLargeBalances(t *testing.T) {
	// 10^30 + 1 raw units with 0 decimals is strictly above 10^30 even
	// though both collapse to the same float64.
	a, err := Parse("1000000000000000000000000000001", 0)
	require.NoError(t, err)

	threshold := decimal.RequireFromString("1000000000000000000000000000000")
	assert.True(t, a.AtLeast(threshold))
	assert.Equal(t, float64(1e30), a.Float64())

	b, err := Parse("999999999999999999999999999999", 0)
	require.NoError(t, err)
	assert.False(t, b.AtLeast(threshold))
}

func TestZero(t *testing.T) {
	z := Zero(9)
	assert.True(t, z.IsZero())
	assert.Equal(t, uint8(9), z.Scale())
	assert.Equal(t, "0.00", z.Fixed(2))
}

func TestMarshalJSON(t *testing.T) {
	a, err := Parse("1500000", 6)
	require.NoError(t, err)

	b, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"1.5"`, string(b))
}
