package raffle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/tip3-raffle/internal/amount"
)

func rec(t *testing.T, addr, raw string, decimals uint8) Record {
	t.Helper()
	a, err := amount.Parse(raw, decimals)
	require.NoError(t, err)
	return Record{Address: addr, Balance: a}
}

func TestFilterAndSelect(t *testing.T) {
	records := []Record{
		rec(t, "a", "1500000", 6),
		rec(t, "b", "0", 6),
		rec(t, "c", "1000000", 6),
		rec(t, "d", "999999", 6),
		rec(t, "e", "7000000", 6),
	}

	sel := FilterAndSelect(records, decimal.NewFromInt(1), func(n int) int { return n - 1 })

	var got []string
	for _, r := range sel.Filtered {
		got = append(got, r.Address)
	}
	assert.Equal(t, []string{"a", "c", "e"}, got, "inclusive bound, input order kept")
	require.NotNil(t, sel.Selected)
	assert.Equal(t, "e", sel.Selected.Address)
}

func TestFilterAndSelectPartition(t *testing.T) {
	records := []Record{
		rec(t, "a", "5", 0),
		rec(t, "b", "4", 0),
		rec(t, "c", "6", 0),
		rec(t, "d", "5", 0),
	}
	minBalance := decimal.NewFromInt(5)

	sel := FilterAndSelect(records, minBalance, nil)

	in := map[string]bool{}
	for _, r := range sel.Filtered {
		in[r.Address] = true
		assert.True(t, r.Balance.AtLeast(minBalance))
	}
	for _, r := range records {
		if !in[r.Address] {
			assert.False(t, r.Balance.AtLeast(minBalance))
		}
	}
	assert.Len(t, sel.Filtered, 3)
}

func TestFilterAndSelectEmpty(t *testing.T) {
	records := []Record{rec(t, "a", "1500000", 6), rec(t, "b", "0", 6)}

	sel := FilterAndSelect(records, decimal.NewFromInt(5), func(int) int {
		t.Fatal("picker must not be called without candidates")
		return 0
	})

	assert.NotNil(t, sel.Filtered)
	assert.Empty(t, sel.Filtered)
	assert.Nil(t, sel.Selected)

	sel = FilterAndSelect(nil, decimal.Zero, nil)
	assert.Nil(t, sel.Selected)
}

func TestFilterAndSelectSingleCandidate(t *testing.T) {
	records := []Record{rec(t, "a", "0", 6), rec(t, "only", "2000000", 6)}

	for i := 0; i < 100; i++ {
		sel := FilterAndSelect(records, decimal.NewFromInt(1), UniformPicker(nil))
		require.NotNil(t, sel.Selected)
		assert.Equal(t, "only", sel.Selected.Address)
	}
}

func TestFilterAndSelectUniform(t *testing.T) {
	records := []Record{
		rec(t, "a", "1", 0),
		rec(t, "b", "1", 0),
		rec(t, "c", "1", 0),
		rec(t, "d", "1", 0),
	}
	pick := SeededPicker(42)

	const trials = 40000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		sel := FilterAndSelect(records, decimal.NewFromInt(1), pick)
		require.NotNil(t, sel.Selected)
		counts[sel.Selected.Address]++
	}

	require.Len(t, counts, 4, "every candidate can win")
	for addr, n := range counts {
		assert.InDelta(t, 0.25, float64(n)/trials, 0.02, "frequency of %s", addr)
	}
}

func TestFilterAndSelectPickerOutOfRange(t *testing.T) {
	records := []Record{rec(t, "a", "1", 0), rec(t, "b", "1", 0)}

	assert.Panics(t, func() {
		FilterAndSelect(records, decimal.Zero, func(n int) int { return n })
	})
}

func TestSeededPickerIsReproducible(t *testing.T) {
	a, b := SeededPicker(7), SeededPicker(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a(10), b(10))
	}
}
