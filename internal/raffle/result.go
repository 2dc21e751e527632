// Package raffle scans token balances of an address list, keeps the
// addresses at or above a threshold and draws one of them.
package raffle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matrixise/tip3-raffle/internal/amount"
	"github.com/matrixise/tip3-raffle/internal/token"
)

// Record is the balance of one scanned address.
type Record struct {
	Address string        `json:"address"`
	Balance amount.Amount `json:"balance"`
}

// Result is the outcome of one run. Selected is nil when no address
// qualified.
type Result struct {
	RunID      string          `json:"runId"`
	Token      token.Token     `json:"token"`
	MinBalance decimal.Decimal `json:"minBalance"`
	Records    []Record        `json:"records"`
	Filtered   []Record        `json:"filtered"`
	Selected   *Record         `json:"selected"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// Scanned is the number of addresses evaluated.
func (r *Result) Scanned() int {
	return len(r.Records)
}

// Qualifying is the number of addresses at or above the threshold.
func (r *Result) Qualifying() int {
	return len(r.Filtered)
}
