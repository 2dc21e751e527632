package raffle

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Picker returns an index uniformly distributed in [0, n).
type Picker func(n int) int

// UniformPicker draws from r, or from the global source when r is nil.
func UniformPicker(r *rand.Rand) Picker {
	if r == nil {
		return rand.IntN
	}
	return r.IntN
}

// SeededPicker gives reproducible draws.
func SeededPicker(seed uint64) Picker {
	return UniformPicker(rand.New(rand.NewPCG(seed, seed)))
}

// Selection is the filter output and the drawn record, if any.
type Selection struct {
	Filtered []Record
	Selected *Record
}

// FilterAndSelect keeps the records whose balance is at least minBalance
// (inclusive, exact comparison, input order preserved) and draws one of
// them. An empty qualifying set is a valid outcome with no selection.
func FilterAndSelect(records []Record, minBalance decimal.Decimal, pick Picker) Selection {
	filtered := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Balance.AtLeast(minBalance) {
			filtered = append(filtered, rec)
		}
	}

	sel := Selection{Filtered: filtered}
	switch len(filtered) {
	case 0:
		return sel
	case 1:
		winner := filtered[0]
		sel.Selected = &winner
		return sel
	}

	if pick == nil {
		pick = UniformPicker(nil)
	}
	idx := pick(len(filtered))
	if idx < 0 || idx >= len(filtered) {
		panic(fmt.Sprintf("raffle: picker returned %d for %d candidates", idx, len(filtered)))
	}
	winner := filtered[idx]
	sel.Selected = &winner
	return sel
}
