package raffle

import (
	"context"

	"github.com/matrixise/tip3-raffle/internal/amount"
	"github.com/matrixise/tip3-raffle/internal/token"
)

// BalanceOracle reads one balance and never fails. *token.Oracle
// implements it.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, tok token.Token, owner string) amount.Amount
}

type scanCounter interface {
	AddressScanned()
}

// Scanner drives the oracle over an address list one address at a time.
// Events are emitted in input order.
type Scanner struct {
	oracle  BalanceOracle
	counter scanCounter
}

// NewScanner creates a scanner. counter may be nil.
func NewScanner(oracle BalanceOracle, counter scanCounter) *Scanner {
	return &Scanner{oracle: oracle, counter: counter}
}

// Scan returns one record per address in input order and emits a record
// event after each one. The context is checked around every lookup, so a
// balance read while the context was being cancelled is never recorded.
// On cancellation the records gathered so far are returned with ctx.Err()
// and there is no way to resume.
func (s *Scanner) Scan(ctx context.Context, tok token.Token, addresses []string, sink Sink) ([]Record, error) {
	if sink == nil {
		sink = Discard
	}

	records := make([]Record, 0, len(addresses))
	for i, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		balance := s.oracle.BalanceOf(ctx, tok, addr)
		if err := ctx.Err(); err != nil {
			return records, err
		}

		rec := Record{Address: addr, Balance: balance}
		records = append(records, rec)
		if s.counter != nil {
			s.counter.AddressScanned()
		}

		sink.Emit(Event{
			Kind:   EventRecord,
			Token:  tok,
			Total:  len(addresses),
			Index:  i,
			Record: &rec,
		})
	}
	return records, nil
}
