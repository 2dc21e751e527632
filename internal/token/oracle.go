package token

import (
	"context"
	"errors"
	"log/slog"

	"github.com/matrixise/tip3-raffle/internal/amount"
	"github.com/matrixise/tip3-raffle/internal/blockchain"
)

// Failure reasons for balance lookups that were absorbed as zero.
const (
	ReasonMalformedAddress  = "malformed_address"
	ReasonWalletUnavailable = "wallet_unavailable"
	ReasonRPCUnavailable    = "rpc_unavailable"
	ReasonMalformedResponse = "malformed_response"
	ReasonInvalidAmount     = "invalid_amount"
)

// FailureRecorder counts absorbed lookups. *metrics.Metrics implements it.
type FailureRecorder interface {
	BalanceFailure(reason string)
}

// Oracle reads owner balances. A failed lookup is indistinguishable from
// an owner without a wallet and yields zero, so one bad address never
// aborts a batch.
type Oracle struct {
	contracts Contracts
	recorder  FailureRecorder
	logger    *slog.Logger
}

// NewOracle creates an oracle. recorder and logger may be nil.
func NewOracle(contracts Contracts, recorder FailureRecorder, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{contracts: contracts, recorder: recorder, logger: logger}
}

// BalanceOf returns the balance of owner for tok, or zero when the
// wallet cannot be read. Lookups aborted by ctx are not counted as
// failures.
func (o *Oracle) BalanceOf(ctx context.Context, tok Token, owner string) amount.Amount {
	balance, err := o.lookup(ctx, tok, owner)
	if err != nil && ctx.Err() != nil {
		o.logger.Debug("Balance lookup cancelled", "owner", owner, "symbol", tok.Symbol, "error", err)
		return amount.Zero(tok.Decimals)
	}
	if err != nil {
		reason := classify(err)
		if o.recorder != nil {
			o.recorder.BalanceFailure(reason)
		}
		o.logger.Debug("Balance lookup failed, counting as zero",
			"owner", owner,
			"symbol", tok.Symbol,
			"reason", reason,
			"error", err,
		)
		return amount.Zero(tok.Decimals)
	}
	return balance
}

func (o *Oracle) lookup(ctx context.Context, tok Token, owner string) (amount.Amount, error) {
	canonical, err := blockchain.ParseAddress(owner)
	if err != nil {
		return amount.Amount{}, err
	}
	wallet, err := o.contracts.WalletOf(ctx, tok.Root, canonical)
	if err != nil {
		return amount.Amount{}, err
	}
	raw, err := o.contracts.WalletBalance(ctx, wallet)
	if err != nil {
		return amount.Amount{}, err
	}
	return amount.Parse(raw, tok.Decimals)
}

func classify(err error) string {
	switch {
	case errors.Is(err, blockchain.ErrMalformedAddress):
		return ReasonMalformedAddress
	case errors.Is(err, amount.ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, blockchain.ErrMalformedOutput):
		return ReasonMalformedResponse
	case blockchain.IsExecutionError(err):
		return ReasonWalletUnavailable
	default:
		return ReasonRPCUnavailable
	}
}
